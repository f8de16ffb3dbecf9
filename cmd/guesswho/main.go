package main

import (
	"cmp"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/schollz/progressbar/v3"

	"guesswho-zk/internal/codec"
	"guesswho-zk/internal/commitment"
	"guesswho-zk/internal/game"
	"guesswho-zk/internal/log"
	"guesswho-zk/internal/server"
	"guesswho-zk/internal/zk"
)

const (
	envKeys     = "GUESSWHO_KEYS"
	envAddr     = "GUESSWHO_ADDR"
	envLogLevel = "GUESSWHO_LOG_LEVEL"
	envOwner    = "GUESSWHO_OWNER"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "setup":
		err = cmdSetup(args)
	case "export-solidity":
		err = cmdExportSolidity(args)
	case "commit":
		err = cmdCommit(args)
	case "question":
		err = cmdQuestion(args)
	case "guess":
		err = cmdGuess(args)
	case "verify":
		err = cmdVerify(args)
	case "serve":
		err = cmdServe(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Println(`Guess Who ZK CLI

Commands:
  setup           --keys ./keys
  export-solidity --keys ./keys --circuit question [--out Verifier.sol]
  commit          --keys ./keys [--character 3,2,1,0] --secret secret.json --out selection.json
  question        --keys ./keys --secret secret.json --type T --characteristic C --out question.json
  guess           --keys ./keys --secret secret.json --guess 3,2,1,0 --out guess.json
  verify          --keys ./keys --proof proof.json [--hash HASH]
  serve           --keys ./keys --addr :8080 --owner 0x...

Environment: GUESSWHO_KEYS, GUESSWHO_ADDR, GUESSWHO_LOG_LEVEL, GUESSWHO_OWNER`)
}

// newFlagSet adds the flags every subcommand shares.
func newFlagSet(name string) (fs *flag.FlagSet, keys, level *string) {
	fs = flag.NewFlagSet(name, flag.ExitOnError)
	keys = fs.String("keys", cmp.Or(os.Getenv(envKeys), "./keys"), "keys directory")
	level = fs.String("log-level", cmp.Or(os.Getenv(envLogLevel), log.LogLevelInfo), "log level (debug, info, warn, error, none)")
	return fs, keys, level
}

func parse(fs *flag.FlagSet, args []string, level *string) {
	_ = fs.Parse(args)
	log.Init(*level, "stderr", nil)
}

// ensureKeys loads or generates the circuit keys, showing progress when a
// setup actually runs.
func ensureKeys(ctx context.Context, dir string) (*zk.System, error) {
	bar := progressbar.NewOptions(len(zk.Circuits),
		progressbar.OptionSetDescription("circuit keys"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	sys, err := zk.EnsureKeys(ctx, dir, func(id zk.CircuitID) {
		_ = bar.Add(1)
		log.Debugw("circuit ready", "circuit", id.String())
	})
	_ = bar.Finish()
	return sys, err
}

func cmdSetup(args []string) error {
	fs, keys, level := newFlagSet("setup")
	parse(fs, args, level)

	if _, err := ensureKeys(context.Background(), *keys); err != nil {
		return err
	}
	fmt.Println("✓ keys ready in", *keys)
	return nil
}

func cmdExportSolidity(args []string) error {
	fs, keys, level := newFlagSet("export-solidity")
	circuit := fs.String("circuit", "question", "circuit (selection, question, guess)")
	out := fs.String("out", "", "output file (default stdout)")
	parse(fs, args, level)

	id, err := zk.ParseCircuitID(*circuit)
	if err != nil {
		return err
	}
	v, err := zk.LoadVerifier(*keys)
	if err != nil {
		return err
	}
	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return v.ExportSolidity(id, w)
}

func cmdCommit(args []string) error {
	fs, keys, level := newFlagSet("commit")
	charFlag := fs.String("character", "", "character, e.g. 3,2,1,0 (random board character if empty)")
	secretPath := fs.String("secret", "secret.json", "secret output")
	out := fs.String("out", "selection.json", "selection proof output")
	parse(fs, args, level)

	character := game.RandomCharacter()
	if *charFlag != "" {
		var err error
		if character, err = game.ParseCharacter(*charFlag); err != nil {
			return err
		}
	}
	if err := character.Validate(); err != nil {
		return err
	}
	salt, err := commitment.NewSalt()
	if err != nil {
		return err
	}
	sys, err := ensureKeys(context.Background(), *keys)
	if err != nil {
		return err
	}
	res, err := sys.Prover().ProveSelection(character, salt)
	if err != nil {
		return err
	}

	sec := codec.NewSecret(character, salt)
	if err := saveJSON(*secretPath, &sec); err != nil {
		return err
	}
	payload := codec.SelectionPayload(res)
	if err := saveJSON(*out, &payload); err != nil {
		return err
	}
	fmt.Println("HASH:", sec.HashHex)
	fmt.Println("✓ wrote", *secretPath, "and", *out)
	return nil
}

func loadSecret(path string) (codec.Secret, error) {
	var sec codec.Secret
	if err := loadJSON(path, &sec); err != nil {
		return sec, err
	}
	return sec, nil
}

func cmdQuestion(args []string) error {
	fs, keys, level := newFlagSet("question")
	secretPath := fs.String("secret", "secret.json", "secret file")
	typ := fs.Uint("type", 0, "characteristic type [0..3]")
	value := fs.Uint("characteristic", 0, "characteristic value [0..3]")
	out := fs.String("out", "question.json", "proof output")
	parse(fs, args, level)

	sec, err := loadSecret(*secretPath)
	if err != nil {
		return err
	}
	salt, hash, err := sec.Open()
	if err != nil {
		return err
	}
	if *typ > 255 || *value > 255 {
		return game.ErrOutOfRange
	}
	q := game.Query{Type: uint8(*typ), Characteristic: uint8(*value)}
	if err := q.Validate(); err != nil {
		return err
	}
	sys, err := ensureKeys(context.Background(), *keys)
	if err != nil {
		return err
	}
	res, err := sys.Prover().ProveQuestion(sec.Character, salt, hash, q)
	if err != nil {
		return err
	}
	payload := codec.QuestionPayload(res)
	if err := saveJSON(*out, &payload); err != nil {
		return err
	}
	fmt.Printf("✓ wrote %s (answer: %v)\n", *out, res.Public.Response == 1)
	return nil
}

func cmdGuess(args []string) error {
	fs, keys, level := newFlagSet("guess")
	secretPath := fs.String("secret", "secret.json", "secret file")
	guessFlag := fs.String("guess", "", "guessed character, e.g. 3,2,1,0")
	out := fs.String("out", "guess.json", "proof output")
	parse(fs, args, level)

	sec, err := loadSecret(*secretPath)
	if err != nil {
		return err
	}
	salt, hash, err := sec.Open()
	if err != nil {
		return err
	}
	guess, err := game.ParseCharacter(*guessFlag)
	if err != nil {
		return err
	}
	sys, err := ensureKeys(context.Background(), *keys)
	if err != nil {
		return err
	}
	res, err := sys.Prover().ProveGuess(sec.Character, salt, hash, guess)
	if err != nil {
		return err
	}
	payload := codec.GuessPayload(res)
	if err := saveJSON(*out, &payload); err != nil {
		return err
	}
	fmt.Printf("✓ wrote %s (result: %s)\n", *out, map[uint8]string{0: "WRONG", 1: "CORRECT"}[res.Public.Win])
	return nil
}

func cmdVerify(args []string) error {
	fs, keys, level := newFlagSet("verify")
	proofPath := fs.String("proof", "proof.json", "proof payload")
	hashHex := fs.String("hash", "", "commitment to verify against (default: the payload's)")
	parse(fs, args, level)

	var payload codec.ProofPayload
	if err := loadJSON(*proofPath, &payload); err != nil {
		return err
	}
	v, err := zk.LoadVerifier(*keys)
	if err != nil {
		return err
	}
	if err := payload.Verify(v, *hashHex); err != nil {
		return err
	}
	switch {
	case payload.Public.Response != nil:
		fmt.Println("VALID answer:", *payload.Public.Response == 1)
	case payload.Public.Win != nil:
		fmt.Println("VALID verdict:", map[uint8]string{0: "WRONG", 1: "CORRECT"}[*payload.Public.Win])
	default:
		fmt.Println("VALID selection")
	}
	return nil
}

func cmdServe(args []string) error {
	fs, keys, level := newFlagSet("serve")
	addr := fs.String("addr", cmp.Or(os.Getenv(envAddr), ":8080"), "listen address")
	ownerHex := fs.String("owner", os.Getenv(envOwner), "address allowed to reset rooms")
	rooms := fs.Int("rooms", 1, "rooms to open at start")
	parse(fs, args, level)

	var owner common.Address
	if *ownerHex != "" {
		if !common.IsHexAddress(*ownerHex) {
			return fmt.Errorf("invalid owner address %q", *ownerHex)
		}
		owner = common.HexToAddress(*ownerHex)
	} else {
		log.Warnw("no owner configured, rooms cannot be reset")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sys, err := ensureKeys(ctx, *keys)
	if err != nil {
		return err
	}
	srv := server.New(server.Config{Owner: owner, Addr: *addr}, sys)
	for i := 0; i < *rooms; i++ {
		fmt.Println("room:", srv.NewRoom())
	}
	return srv.ListenAndServe(ctx)
}

func saveJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func loadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}
