package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/btcsuite/btcd/btcutil"
	cryptixwallet "github.com/cryptix-network/cryptix-wallet-go"
	wsclient "github.com/cryptix-network/cryptix-wallet-go/client/ws"
	"github.com/cryptix-network/cryptix-wallet-go/store"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

const (
	DatadirEnvVar = "CRYPTIX_WALLET_DATADIR"
	StoreEnvVar   = "CRYPTIX_WALLET_STORE"
)

var (
	Version string
	storage cryptixwallet.Storage
)

func main() {
	cryptixwallet.Version = Version

	app := cli.NewApp()
	app.Version = Version
	app.Name = "Cryptix wallet CLI"
	app.Usage = "cryptix wallet command line interface"
	app.Commands = append(
		app.Commands,
		&initCommand,
		&receiveCommand,
		&addressesCommand,
		&balanceCommand,
		&dumpCommand,
		&signCommand,
		&verifyCommand,
		&versionCommand,
	)
	app.Flags = []cli.Flag{datadirFlag, storeFlag, verboseFlag}
	app.Before = setup
	app.After = func(*cli.Context) error {
		if storage != nil {
			storage.Close()
		}
		cryptixwallet.ShutdownCryptixFramework()
		return nil
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

var (
	datadirFlag = &cli.StringFlag{
		Name:    "datadir",
		Usage:   "Specify the data directory",
		Value:   btcutil.AppDataDir("cryptix-wallet", false),
		EnvVars: []string{DatadirEnvVar},
	}
	storeFlag = &cli.StringFlag{
		Name:    "store",
		Usage:   "storage backend, one of file, kv or sql",
		Value:   cryptixwallet.FileStore,
		EnvVars: []string{StoreEnvVar},
	}
	verboseFlag = &cli.BoolFlag{
		Name:        "verbose",
		Usage:       "enable debug logs",
		Value:       false,
		DefaultText: "false",
	}
	passwordFlag = &cli.StringFlag{
		Name:  "password",
		Usage: "password to unlock the wallet",
	}
	mnemonicFlag = &cli.StringFlag{
		Name:  "mnemonic",
		Usage: "restore the wallet from this mnemonic instead of creating a new one",
	}
	networkFlag = &cli.StringFlag{
		Name:  "network",
		Usage: "network of the wallet, one of mainnet, testnet, devnet or simnet",
		Value: cryptixwallet.Mainnet.Name,
	}
	rpcServerFlag = &cli.StringFlag{
		Name:  "rpc-server",
		Usage: "websocket url of the node, defaults to the network's local node",
	}
	newAddressFlag = &cli.BoolFlag{
		Name:  "new",
		Usage: "derive a fresh receive address",
	}
	addressFlag = &cli.StringFlag{
		Name:  "address",
		Usage: "address of the signing key, defaults to the receive address",
	}
	messageFlag = &cli.StringFlag{
		Name:     "message",
		Usage:    "message to sign or verify",
		Required: true,
	}
	signatureFlag = &cli.StringFlag{
		Name:     "signature",
		Usage:    "hex encoded signature",
		Required: true,
	}
)

var (
	initCommand = cli.Command{
		Name:   "init",
		Usage:  "Create or restore a wallet encrypted with a password",
		Action: initWallet,
		Flags:  []cli.Flag{passwordFlag, mnemonicFlag, networkFlag},
	}
	receiveCommand = cli.Command{
		Name:   "receive",
		Usage:  "Shows the receive address",
		Action: receive,
		Flags:  []cli.Flag{passwordFlag, newAddressFlag},
	}
	addressesCommand = cli.Command{
		Name:   "addresses",
		Usage:  "Lists every derived address",
		Action: addresses,
		Flags:  []cli.Flag{passwordFlag},
	}
	balanceCommand = cli.Command{
		Name:   "balance",
		Usage:  "Syncs with the node and shows the wallet balance",
		Action: balance,
		Flags:  []cli.Flag{passwordFlag, rpcServerFlag},
	}
	dumpCommand = cli.Command{
		Name:   "dump",
		Usage:  "Dumps the wallet mnemonic",
		Action: dumpMnemonic,
		Flags:  []cli.Flag{passwordFlag},
	}
	signCommand = cli.Command{
		Name:   "sign",
		Usage:  "Signs a message with the key of a wallet address",
		Action: sign,
		Flags:  []cli.Flag{passwordFlag, addressFlag, messageFlag},
	}
	verifyCommand = cli.Command{
		Name:   "verify",
		Usage:  "Verifies a message signature",
		Action: verify,
		Flags:  []cli.Flag{addressFlag, messageFlag, signatureFlag},
	}
	versionCommand = cli.Command{
		Name:  "version",
		Usage: "Shows the version of the CLI",
		Action: func(ctx *cli.Context) error {
			fmt.Println(Version)
			return nil
		},
	}
)

func setup(ctx *cli.Context) error {
	logLevel := "warning"
	if ctx.Bool(verboseFlag.Name) {
		logLevel = "debug"
	}
	if err := cryptixwallet.InitCryptixFramework(cryptixwallet.FrameworkConfig{
		LogLevel: logLevel,
	}); err != nil {
		return err
	}

	switch ctx.Args().First() {
	case "", "version", "verify", "help", "h":
		return nil
	}

	dataDir := ctx.String(datadirFlag.Name)
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return err
	}
	s, err := store.NewStorage(store.Config{
		Type:    ctx.String(storeFlag.Name),
		BaseDir: dataDir,
	})
	if err != nil {
		return fmt.Errorf("error opening wallet storage: %v", err)
	}
	storage = s
	return nil
}

func initWallet(ctx *cli.Context) error {
	existing, err := storage.GetWallet(ctx.Context)
	if err != nil {
		return err
	}
	if existing != nil {
		return fmt.Errorf("wallet already initialized in %s", storage.GetDatadir())
	}

	network, err := cryptixwallet.NetworkByName(ctx.String(networkFlag.Name))
	if err != nil {
		return err
	}
	password, err := readPassword(ctx)
	if err != nil {
		return err
	}

	var wallet *cryptixwallet.Wallet
	if mnemonic := ctx.String(mnemonicFlag.Name); mnemonic != "" {
		wallet, err = cryptixwallet.FromMnemonic(
			mnemonic, network, cryptixwallet.WithStorage(storage),
		)
	} else {
		wallet, err = cryptixwallet.CreateWallet(network, cryptixwallet.WithStorage(storage))
	}
	if err != nil {
		return err
	}
	defer wallet.Close()

	if err := wallet.Save(ctx.Context, string(password)); err != nil {
		return err
	}
	return printJSON(map[string]string{
		"network": network.Name,
		"address": wallet.ReceiveAddress(),
	})
}

func receive(ctx *cli.Context) error {
	wallet, err := openWallet(ctx)
	if err != nil {
		return err
	}
	defer wallet.Close()

	address := wallet.ReceiveAddress()
	if ctx.Bool(newAddressFlag.Name) {
		if address, err = wallet.NewReceiveAddress(ctx.Context); err != nil {
			return err
		}
	}
	return printJSON(map[string]string{"address": address})
}

func addresses(ctx *cli.Context) error {
	wallet, err := openWallet(ctx)
	if err != nil {
		return err
	}
	defer wallet.Close()

	return printJSON(map[string]any{
		"receive":   wallet.ReceiveAddress(),
		"change":    wallet.ChangeAddress(),
		"addresses": wallet.Addresses(),
	})
}

func balance(ctx *cli.Context) error {
	password, err := readPassword(ctx)
	if err != nil {
		return err
	}
	data, err := storage.GetWallet(ctx.Context)
	if err != nil {
		return err
	}
	if data == nil {
		return notInitialized()
	}
	network, err := cryptixwallet.NetworkByName(data.Network)
	if err != nil {
		return err
	}

	url := ctx.String(rpcServerFlag.Name)
	if url == "" {
		url = network.RPCURL
	}
	client, err := wsclient.NewClient(ctx.Context, url, wsclient.WithReconnect(false))
	if err != nil {
		return fmt.Errorf("error connecting to %s: %v", url, err)
	}
	defer client.Close()

	wallet, err := cryptixwallet.ImportWallet(
		ctx.Context, storage, string(password), cryptixwallet.WithRPC(client),
	)
	if err != nil {
		return err
	}
	defer wallet.Close()

	if err := wallet.Sync(ctx.Context); err != nil {
		return err
	}
	bal := wallet.Balance()
	return printJSON(map[string]any{
		"available": cryptixwallet.Helper.FormatCPX(bal.Available),
		"pending":   cryptixwallet.Helper.FormatCPX(bal.Pending),
		"total":     cryptixwallet.Helper.FormatCPX(bal.Total),
		"daa_score": wallet.DaaScore(),
		"utxos":     len(wallet.Utxos()),
	})
}

func dumpMnemonic(ctx *cli.Context) error {
	wallet, err := openWallet(ctx)
	if err != nil {
		return err
	}
	defer wallet.Close()

	return printJSON(map[string]string{"mnemonic": wallet.Mnemonic()})
}

func sign(ctx *cli.Context) error {
	wallet, err := openWallet(ctx)
	if err != nil {
		return err
	}
	defer wallet.Close()

	address := ctx.String(addressFlag.Name)
	if address == "" {
		address = wallet.ReceiveAddress()
	}
	signature, err := wallet.SignMessage(address, []byte(ctx.String(messageFlag.Name)))
	if err != nil {
		return err
	}
	return printJSON(map[string]string{
		"address":   address,
		"signature": signature,
	})
}

func verify(ctx *cli.Context) error {
	address := ctx.String(addressFlag.Name)
	if address == "" {
		return fmt.Errorf("missing address")
	}
	ok, err := cryptixwallet.Helper.VerifyMessage(
		address, []byte(ctx.String(messageFlag.Name)), ctx.String(signatureFlag.Name),
	)
	if err != nil {
		return err
	}
	return printJSON(map[string]bool{"valid": ok})
}

func openWallet(ctx *cli.Context) (*cryptixwallet.Wallet, error) {
	password, err := readPassword(ctx)
	if err != nil {
		return nil, err
	}
	wallet, err := cryptixwallet.ImportWallet(context.Background(), storage, string(password))
	if errors.Is(err, cryptixwallet.ErrWalletNotFound) {
		return nil, notInitialized()
	}
	return wallet, err
}

func notInitialized() error {
	return fmt.Errorf("CLI not initialized, run 'init' cmd to initialize")
}

func readPassword(ctx *cli.Context) ([]byte, error) {
	password := []byte(ctx.String("password"))
	if len(password) == 0 {
		fmt.Print("unlock your wallet with password: ")
		var err error
		password, err = term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return nil, err
		}
	}
	return password, nil
}

func printJSON(resp any) error {
	jsonBytes, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		return err
	}
	fmt.Println(string(jsonBytes))
	return nil
}
