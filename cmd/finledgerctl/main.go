// finledgerctl is the operator CLI: create users, import transactions
// from CSV and export the ledger, straight against the database.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"golang.org/x/term"

	"finledger/internal/core"
	"finledger/internal/services"
	"finledger/internal/storage"
)

type Globals struct {
	DB string `help:"Path to the SQLite database." default:"./data/finledger.db" env:"SQLITE_DB_PATH"`
}

type AddUserCmd struct {
	Email     string `help:"Email address of the new user." required:""`
	FirstName string `help:"First name." required:""`
	LastName  string `help:"Last name." required:""`
	Password  string `help:"Password (prompted when omitted)."`
}

func (cmd *AddUserCmd) Run(globals *Globals) error {
	password := cmd.Password
	if password == "" {
		fmt.Fprint(os.Stdout, "Password: ")
		var err error
		password, err = readPassword(os.Stdin)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		fmt.Fprintln(os.Stdout)
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password cannot be empty")
	}

	store, err := storage.NewStore(globals.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	auth := services.NewAuthService(store)
	u, err := auth.Register(context.Background(), services.RegisterInput{
		Email:     cmd.Email,
		Password:  password,
		FirstName: cmd.FirstName,
		LastName:  cmd.LastName,
	})
	if err != nil {
		return err
	}

	fmt.Printf("User %s created with id %s\n", u.Email, u.ID)
	return nil
}

type ImportCmd struct {
	File string `help:"CSV file to import." arg:"" type:"existingfile"`
	User string `help:"Id or email of the user owning the imported transactions." required:""`
}

func (cmd *ImportCmd) Run(globals *Globals) error {
	store, err := storage.NewStore(globals.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	u, err := resolveUser(ctx, store, cmd.User)
	if err != nil {
		return err
	}

	f, err := os.Open(cmd.File)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	ledger := services.NewLedgerService(store, nil)
	imported, err := ledger.ImportCSV(ctx, u.ID, f)
	if err != nil {
		return fmt.Errorf("imported %d rows before failing: %w", imported, err)
	}

	fmt.Printf("Imported %d transactions for %s\n", imported, u.Email)
	return nil
}

type ExportCmd struct{}

func (cmd *ExportCmd) Run(globals *Globals) error {
	store, err := storage.NewStore(globals.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	ledger := services.NewLedgerService(store, nil)
	return ledger.ExportCSV(context.Background(), os.Stdout)
}

// resolveUser accepts either a user id or an email.
func resolveUser(ctx context.Context, store *storage.Store, ref string) (core.User, error) {
	if u, err := store.GetUserByID(ctx, ref); err == nil {
		return u, nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return core.User{}, err
	}

	u, err := store.GetUserByEmail(ctx, ref)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("no user with id or email %q", ref)
	}
	return u, err
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal input (tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

type CLI struct {
	Globals

	AddUser AddUserCmd `cmd:"" help:"Create a user."`
	Import  ImportCmd  `cmd:"" help:"Import transactions from a CSV file."`
	Export  ExportCmd  `cmd:"" help:"Export every transaction as CSV to stdout."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("finledgerctl"),
		kong.Description("Operator tooling for the finledger database."),
		kong.UsageOnError())
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
