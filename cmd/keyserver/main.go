package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/seal-labs/ibte/api/extracthandler"
	"github.com/seal-labs/ibte/cmd/flags"
	"github.com/seal-labs/ibte/common"
	"github.com/seal-labs/ibte/httpserver"
	"github.com/seal-labs/ibte/ibe"
	"github.com/seal-labs/ibte/kms"
)

var KeyserverServiceLogFlag = flags.LogServiceFlagFn("keyserver")

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8081",
	Usage: "address to listen on for API",
}
var SeedFlag = &cli.StringFlag{
	Name:  "seed",
	Usage: "hex-encoded 32-byte seed to derive the master key share from; a fresh random key is generated if omitted",
}
var KeyIndexFlag = &cli.Uint64Flag{
	Name:  "key-index",
	Value: 0,
	Usage: "key derivation index under the seed",
}

func main() {
	app := &cli.App{
		Name:  "keyserver",
		Usage: "Serve identity key extraction for one threshold key server",
		Flags: append([]cli.Flag{ListenAddrFlag, SeedFlag, KeyIndexFlag, KeyserverServiceLogFlag}, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String(ListenAddrFlag.Name)
			logger := flags.SetupLogger(cCtx)

			authority, err := setupAuthority(cCtx)
			if err != nil {
				logger.Error("Failed to initialize authority", "err", err)
				return err
			}
			logger.Info("Authority initialized", "serverID", authority.ID().Hex())

			server, err := httpserver.New(
				flags.ConfigureServer(cCtx, logger, listenAddr),
				extracthandler.NewHandler(authority, common.Version, logger),
			)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func setupAuthority(cCtx *cli.Context) (*kms.Authority, error) {
	seedHex := cCtx.String(SeedFlag.Name)
	if seedHex == "" {
		return kms.NewAuthority(rand.Reader)
	}

	raw, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	var seed ibe.Seed
	if len(raw) != len(seed) {
		return nil, errors.New("seed must be 32 bytes")
	}
	copy(seed[:], raw)

	return kms.AuthorityFromSeed(seed, cCtx.Uint64(KeyIndexFlag.Name))
}
