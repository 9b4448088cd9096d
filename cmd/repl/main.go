package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/btcsuite/btcd/btcutil"
	cryptixwallet "github.com/cryptix-network/cryptix-wallet-go"
	wsclient "github.com/cryptix-network/cryptix-wallet-go/client/ws"
	"github.com/cryptix-network/cryptix-wallet-go/store"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Version = Version
	app.Name = "Cryptix REPL"
	app.Usage = "interactive shell on a synced wallet that prints live balance updates"
	app.Flags = []cli.Flag{datadirFlag, storeFlag, verboseFlag, rpcServerFlag, passwordFlag}
	app.Action = func(ctx *cli.Context) error {
		logLevel := "warning"
		if ctx.Bool(verboseFlag.Name) {
			logLevel = "debug"
		}
		if err := cryptixwallet.InitCryptixFramework(cryptixwallet.FrameworkConfig{
			LogLevel: logLevel,
		}); err != nil {
			return err
		}
		defer cryptixwallet.ShutdownCryptixFramework()

		s, err := store.NewStorage(store.Config{
			Type:    ctx.String(storeFlag.Name),
			BaseDir: ctx.String(datadirFlag.Name),
		})
		if err != nil {
			return err
		}
		defer s.Close()

		wallet, closeClient, err := openWallet(ctx, s)
		if err != nil {
			return err
		}
		defer closeClient()
		defer wallet.Close()

		return repl(ctx, wallet, s)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Println(fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

var (
	datadirFlag = &cli.StringFlag{
		Name:    "datadir",
		Usage:   "Specify the data directory",
		Value:   btcutil.AppDataDir("cryptix-wallet", false),
		EnvVars: []string{"CRYPTIX_WALLET_DATADIR"},
	}
	storeFlag = &cli.StringFlag{
		Name:    "store",
		Usage:   "storage backend, one of file, kv or sql",
		Value:   cryptixwallet.FileStore,
		EnvVars: []string{"CRYPTIX_WALLET_STORE"},
	}
	passwordFlag = &cli.StringFlag{
		Name:  "password",
		Usage: "password to unlock the wallet",
	}
	rpcServerFlag = &cli.StringFlag{
		Name:  "rpc-server",
		Usage: "websocket url of the node, defaults to the network's local node",
	}
	verboseFlag = &cli.BoolFlag{
		Name:        "verbose",
		Usage:       "enable debug logs",
		Value:       false,
		DefaultText: "false",
	}
)

// openWallet unlocks the stored wallet, connects it to the node, syncs it and
// subscribes it to utxo and daa score notifications.
func openWallet(
	ctx *cli.Context, s cryptixwallet.Storage,
) (*cryptixwallet.Wallet, func(), error) {
	data, err := s.GetWallet(ctx.Context)
	if err != nil {
		return nil, nil, err
	}
	if data == nil {
		return nil, nil, fmt.Errorf("no wallet in %s, run 'cryptix-wallet init' first", s.GetDatadir())
	}
	network, err := cryptixwallet.NetworkByName(data.Network)
	if err != nil {
		return nil, nil, err
	}

	password, err := readPassword(ctx)
	if err != nil {
		return nil, nil, err
	}

	url := ctx.String(rpcServerFlag.Name)
	if url == "" {
		url = network.RPCURL
	}
	client, err := wsclient.NewClient(ctx.Context, url)
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to %s: %v", url, err)
	}

	wallet, err := cryptixwallet.ImportWallet(
		ctx.Context, s, string(password), cryptixwallet.WithRPC(client),
	)
	if err != nil {
		client.Close()
		return nil, nil, err
	}

	wallet.AddEventListener(cryptixwallet.BalanceEvent, func(e cryptixwallet.WalletEvent) {
		fmt.Printf("\n[balance] available %s, pending %s\ncryptix> ",
			cryptixwallet.Helper.FormatCPX(e.Balance.Available),
			cryptixwallet.Helper.FormatCPX(e.Balance.Pending))
	})
	wallet.AddEventListener(cryptixwallet.SyncStateEvent, func(e cryptixwallet.WalletEvent) {
		if e.Err != nil {
			fmt.Printf("\n[sync] %v\ncryptix> ", e.Err)
		}
	})

	if err := wallet.Sync(ctx.Context); err != nil {
		wallet.Close()
		client.Close()
		return nil, nil, err
	}
	if err := wallet.Subscribe(ctx.Context); err != nil {
		wallet.Close()
		client.Close()
		return nil, nil, err
	}
	return wallet, client.Close, nil
}

func repl(ctx *cli.Context, wallet *cryptixwallet.Wallet, s cryptixwallet.Storage) error {
	fmt.Println("Cryptix REPL - commands: help, balance, utxos, receive [new], addresses, txs, daa, compose <to> <amount> [fee], sign <message>, quit")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("cryptix> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])

		switch cmd {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Println("Commands:")
			fmt.Println("  balance                      - show available and pending balance")
			fmt.Println("  utxos                        - list wallet utxos")
			fmt.Println("  receive [new]                - show the receive address, 'new' derives the next one")
			fmt.Println("  addresses                    - list every derived address")
			fmt.Println("  txs                          - list transactions from storage")
			fmt.Println("  daa                          - show the last known virtual daa score")
			fmt.Println("  compose <to> <amount> [fee]  - build an unsigned transaction, amounts in CPX")
			fmt.Println("  sign <message>               - sign a message with the receive address key")
			fmt.Println("  quit / exit                  - leave the REPL")
		case "balance":
			bal := wallet.Balance()
			_ = printJSON(map[string]string{
				"available": cryptixwallet.Helper.FormatCPX(bal.Available),
				"pending":   cryptixwallet.Helper.FormatCPX(bal.Pending),
				"total":     cryptixwallet.Helper.FormatCPX(bal.Total),
			})
		case "utxos":
			_ = printJSON(wallet.Utxos())
		case "receive":
			address := wallet.ReceiveAddress()
			if len(fields) > 1 && strings.ToLower(fields[1]) == "new" {
				var err error
				if address, err = wallet.NewReceiveAddress(ctx.Context); err != nil {
					fmt.Printf("error: %v\n", err)
					continue
				}
			}
			_ = printJSON(map[string]string{"address": address})
		case "addresses":
			_ = printJSON(wallet.Addresses())
		case "txs":
			txs, err := s.GetTransactions(ctx.Context)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			_ = printJSON(txs)
		case "daa":
			_ = printJSON(map[string]any{
				"daa_score": wallet.DaaScore(),
				"synced":    wallet.IsSynced(),
			})
		case "compose":
			if len(fields) < 3 {
				fmt.Println("usage: compose <to> <amount> [fee]")
				continue
			}
			amount, err := cryptixwallet.Helper.ParseCPX(fields[2])
			if err != nil {
				fmt.Printf("invalid amount: %v\n", err)
				continue
			}
			var fee uint64
			if len(fields) > 3 {
				if fee, err = cryptixwallet.Helper.ParseCPX(fields[3]); err != nil {
					fmt.Printf("invalid fee: %v\n", err)
					continue
				}
			}
			tx, err := wallet.ComposeTransaction(fields[1], amount, fee)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			_ = printJSON(tx)
		case "sign":
			if len(fields) < 2 {
				fmt.Println("usage: sign <message>")
				continue
			}
			message := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
			address := wallet.ReceiveAddress()
			signature, err := wallet.SignMessage(address, []byte(message))
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			_ = printJSON(map[string]string{"address": address, "signature": signature})
		default:
			fmt.Printf("unknown command: %s (type 'help' for options)\n", cmd)
		}
	}
}

func readPassword(ctx *cli.Context) ([]byte, error) {
	password := []byte(ctx.String(passwordFlag.Name))
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
