// Package cli holds the cobra commands of the modelfactory command line.
package cli

import "github.com/absmach/modelfactory/pkg/sdk"

var (
	defOffset uint64 = 0
	defLimit  uint64 = 10
)

var mfsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	mfsdk = s
}
