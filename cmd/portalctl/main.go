// Command portalctl runs maintenance tasks against the dealer portal
// database.
package main

import (
	"os"

	"dealer-portal/internal/util"

	"go.uber.org/zap"
)

func main() {
	if err := util.InitLogger(os.Getenv("ENV")); err != nil {
		panic(err)
	}
	defer util.SyncLogger()

	if err := newApp().Run(os.Args); err != nil {
		util.GetLogger().Fatal("portalctl failed", zap.Error(err))
	}
}
