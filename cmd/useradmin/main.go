// Command useradmin is a maintenance tool for operators: it creates accounts
// and resets passwords directly against the store, prompting for the password
// on the terminal without echo.
//
// Usage:
//
//	useradmin create
//	useradmin reset-password
//
// Connection settings come from the same configuration as the server.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/clipstream/clipstream/internal/dbx"
	"github.com/clipstream/clipstream/internal/server/auth"
	"github.com/clipstream/clipstream/internal/server/config"
	"github.com/clipstream/clipstream/internal/server/models"
	"github.com/clipstream/clipstream/internal/server/repositories/repomanager"
)

// readPassword is a seam for term.ReadPassword so tests can stub the terminal.
var readPassword = term.ReadPassword

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: useradmin <create|reset-password>")
		os.Exit(2)
	}

	ctx := context.Background()
	cfg := config.LoadConfig()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		fmt.Fprintf(os.Stderr, "migration error: %v\n", err)
		os.Exit(1)
	}

	var cmdErr error
	switch os.Args[1] {
	case "create":
		cmdErr = createUser(ctx, db, repos, cfg)
	case "reset-password":
		cmdErr = resetPassword(ctx, db, repos, cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(2)
	}

	if cmdErr != nil {
		fmt.Fprintf(os.Stderr, "%v\n", cmdErr)
		os.Exit(1)
	}
}

func createUser(ctx context.Context, db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config) error {
	reader := bufio.NewReader(os.Stdin)

	username, err := promptLine(reader, "Username", os.Stdout)
	if err != nil {
		return err
	}
	email, err := promptLine(reader, "Email", os.Stdout)
	if err != nil {
		return err
	}
	fullName, err := promptLine(reader, "Full name", os.Stdout)
	if err != nil {
		return err
	}
	avatarURL, err := promptLine(reader, "Avatar URL", os.Stdout)
	if err != nil {
		return err
	}
	password, err := promptPassword(os.Stdout)
	if err != nil {
		return err
	}

	hash, err := auth.NewPasswordHasher(cfg.BcryptCost).Hash(string(password))
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user, err := repos.Users(db).Create(ctx, &models.User{
		Username:     strings.ToLower(username),
		Email:        strings.ToLower(email),
		FullName:     strings.ToLower(fullName),
		PasswordHash: hash,
		AvatarURL:    avatarURL,
	})
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	fmt.Printf("created user %s (%s)\n", user.Username, user.ID)
	return nil
}

func resetPassword(ctx context.Context, db *sql.DB, repos repomanager.RepositoryManager, cfg *config.Config) error {
	reader := bufio.NewReader(os.Stdin)

	identifier, err := promptLine(reader, "Username or email", os.Stdout)
	if err != nil {
		return err
	}

	password, err := promptPassword(os.Stdout)
	if err != nil {
		return err
	}

	hash, err := auth.NewPasswordHasher(cfg.BcryptCost).Hash(string(password))
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	// Lookup and update run in one transaction so the user cannot vanish
	// between the two statements.
	var username string
	err = dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := repos.Users(tx)

		user, err := repo.FindByUsernameOrEmail(ctx, strings.ToLower(identifier))
		if err != nil {
			return fmt.Errorf("looking up user: %w", err)
		}
		username = user.Username

		return repo.UpdatePassword(ctx, user.ID, hash)
	})
	if err != nil {
		return err
	}

	fmt.Printf("password updated for %s\n", username)
	return nil
}

// promptLine prints a prompt to w and reads one trimmed line.
func promptLine(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads the password from the terminal without echo.
func promptPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}
