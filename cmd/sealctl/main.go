package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/seal-labs/ibte/api/extracthandler"
	"github.com/seal-labs/ibte/cmd/flags"
	"github.com/seal-labs/ibte/ibe"
	"github.com/seal-labs/ibte/kms"
	"github.com/seal-labs/ibte/seal"
	"github.com/seal-labs/ibte/storage"
)

var SealctlServiceLogFlag = flags.LogServiceFlagFn("sealctl")

var (
	SeedFlag = &cli.StringFlag{
		Name:  "seed",
		Usage: "hex-encoded 32-byte seed; a fresh one is generated if omitted",
	}
	KeyIndexFlag = &cli.Uint64Flag{
		Name:  "key-index",
		Value: 0,
		Usage: "key derivation index under the seed",
	}
	PackageIDFlag = &cli.StringFlag{
		Name:     "package-id",
		Required: true,
		Usage:    "hex-encoded 32-byte package id",
	}
	IdentityFlag = &cli.StringFlag{
		Name:     "identity",
		Required: true,
		Usage:    "identity to seal to, raw string",
	}
	ServerURLFlag = &cli.StringSliceFlag{
		Name:  "server-url",
		Usage: "key server base URL, repeat once per server",
	}
	ThresholdFlag = &cli.UintFlag{
		Name:  "threshold",
		Value: 1,
		Usage: "number of key servers required to unseal",
	}
	ModeFlag = &cli.StringFlag{
		Name:  "mode",
		Value: "aes-gcm",
		Usage: "payload scheme: aes-gcm, hmac-ctr, or plain",
	}
	DataFlag = &cli.StringFlag{
		Name:  "data",
		Usage: "payload to seal",
	}
	AADFlag = &cli.StringFlag{
		Name:  "aad",
		Usage: "associated data bound to the payload",
	}
	StoreDirFlag = &cli.StringFlag{
		Name:  "store-dir",
		Value: ".ibte-store",
		Usage: "directory for the encrypted object store",
	}
	ContentIDFlag = &cli.StringFlag{
		Name:     "content-id",
		Required: true,
		Usage:    "hex-encoded content id of the stored encrypted object",
	}
)

func main() {
	app := &cli.App{
		Name:  "sealctl",
		Usage: "Seal and unseal payloads against a set of key servers",
		Flags: append([]cli.Flag{SealctlServiceLogFlag}, flags.CommonFlags...),
		Commands: []*cli.Command{
			{
				Name:   "keygen",
				Usage:  "derive a key server identity from a seed",
				Flags:  []cli.Flag{SeedFlag, KeyIndexFlag},
				Action: runKeygen,
			},
			{
				Name:   "seal",
				Usage:  "seal a payload to an identity",
				Flags:  []cli.Flag{PackageIDFlag, IdentityFlag, ServerURLFlag, ThresholdFlag, ModeFlag, DataFlag, AADFlag, StoreDirFlag},
				Action: runSeal,
			},
			{
				Name:   "unseal",
				Usage:  "unseal a stored encrypted object",
				Flags:  []cli.Flag{ContentIDFlag, ServerURLFlag, StoreDirFlag},
				Action: runUnseal,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runKeygen(cCtx *cli.Context) error {
	var seed ibe.Seed
	if seedHex := cCtx.String(SeedFlag.Name); seedHex != "" {
		raw, err := hex.DecodeString(seedHex)
		if err != nil {
			return fmt.Errorf("invalid seed: %w", err)
		}
		if len(raw) != len(seed) {
			return fmt.Errorf("invalid seed: must be 32 bytes")
		}
		copy(seed[:], raw)
	} else {
		var err error
		seed, err = ibe.GenerateSeed(rand.Reader)
		if err != nil {
			return err
		}
		fmt.Printf("seed: %s\n", hex.EncodeToString(seed[:]))
	}

	authority, err := kms.AuthorityFromSeed(seed, cCtx.Uint64(KeyIndexFlag.Name))
	if err != nil {
		return err
	}

	pubBytes, err := authority.PublicKey().MarshalBinary()
	if err != nil {
		return err
	}

	fmt.Printf("server-id: %s\n", authority.ID().Hex())
	fmt.Printf("public-key: %s\n", hex.EncodeToString(pubBytes))
	return nil
}

func runSeal(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	packageID, err := ibe.PackageIDFromHex(cCtx.String(PackageIDFlag.Name))
	if err != nil {
		return err
	}

	descriptors, err := fetchDescriptors(cCtx)
	if err != nil {
		return err
	}

	serverIDs := make([]seal.ServerID, len(descriptors))
	publicKeys := make([]ibe.PublicKeyShare, len(descriptors))
	for i, d := range descriptors {
		serverIDs[i] = d.ID
		publicKeys[i] = d.PublicKey
	}

	var input seal.Input
	data, aad := []byte(cCtx.String(DataFlag.Name)), []byte(cCtx.String(AADFlag.Name))
	switch mode := cCtx.String(ModeFlag.Name); mode {
	case "aes-gcm":
		input = seal.Aes256Gcm{Data: data, AAD: aad}
	case "hmac-ctr":
		input = seal.Hmac256Ctr{Data: data, AAD: aad}
	case "plain":
		input = seal.Plain{}
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}

	obj, key, err := seal.Seal(rand.Reader, packageID, []byte(cCtx.String(IdentityFlag.Name)),
		serverIDs, publicKeys, uint8(cCtx.Uint(ThresholdFlag.Name)), input)
	if err != nil {
		return err
	}

	objBytes, err := obj.MarshalBinary()
	if err != nil {
		return err
	}

	store, err := storage.NewFileStore(cCtx.String(StoreDirFlag.Name), logger)
	if err != nil {
		return err
	}
	contentID, err := store.Put(cCtx.Context, objBytes)
	if err != nil {
		return err
	}

	fmt.Printf("content-id: %s\n", contentID.Hex())
	if key != nil {
		fmt.Printf("content-key: %s\n", hex.EncodeToString(key))
	}
	return nil
}

func runUnseal(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	contentID, err := storage.ContentIDFromHex(cCtx.String(ContentIDFlag.Name))
	if err != nil {
		return err
	}

	store, err := storage.NewFileStore(cCtx.String(StoreDirFlag.Name), logger)
	if err != nil {
		return err
	}
	objBytes, err := store.Get(cCtx.Context, contentID)
	if err != nil {
		return err
	}
	obj, err := seal.ParseEncryptedObject(objBytes)
	if err != nil {
		return err
	}

	fullID := obj.FullIdentity()

	// Ask every reachable server for its share; Unseal verifies each one and
	// enforces the threshold.
	keyShares := make(map[seal.ServerID]ibe.UserSecretKeyShare)
	publicKeys := make(map[seal.ServerID]ibe.PublicKeyShare)
	for _, url := range cCtx.StringSlice(ServerURLFlag.Name) {
		client := &extracthandler.Client{BaseURL: url}
		descriptor, err := client.ServerInfo(cCtx.Context)
		if err != nil {
			logger.Warn("Skipping unreachable key server", "url", url, "err", err)
			continue
		}
		usk, err := client.Extract(cCtx.Context, fullID)
		if err != nil {
			logger.Warn("Extraction failed", "url", url, "err", err)
			continue
		}
		keyShares[descriptor.ID] = usk
		publicKeys[descriptor.ID] = descriptor.PublicKey
	}

	plaintext, err := seal.Unseal(obj, keyShares, publicKeys)
	if err != nil {
		return err
	}

	if obj.Mode == seal.ModePlain {
		fmt.Printf("content-key: %s\n", hex.EncodeToString(plaintext))
		return nil
	}
	fmt.Printf("%s\n", plaintext)
	return nil
}

func fetchDescriptors(cCtx *cli.Context) ([]seal.KeyServerDescriptor, error) {
	urls := cCtx.StringSlice(ServerURLFlag.Name)
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one --server-url is required")
	}

	descriptors := make([]seal.KeyServerDescriptor, 0, len(urls))
	for _, url := range urls {
		client := &extracthandler.Client{BaseURL: url}
		descriptor, err := client.ServerInfo(cCtx.Context)
		if err != nil {
			return nil, fmt.Errorf("could not fetch server info from %s: %w", url, err)
		}
		descriptors = append(descriptors, descriptor)
	}
	return descriptors, nil
}
