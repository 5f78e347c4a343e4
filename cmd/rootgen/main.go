// rootgen генерирует TOML-дескриптор root-учетки для dndserver.
// По умолчанию пароль - 32 случайных байта в hex, флаг -prompt
// позволяет ввести свой пароль с терминала без эха
package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"

	"github.com/iudanet/dndserver/internal/models"
	"github.com/iudanet/dndserver/internal/validation"
)

const passwordBytes = 32

func main() {
	out := flag.String("out", "root-creds.toml", "path to write the credentials descriptor")
	name := flag.String("name", "root", "root account username")
	prompt := flag.Bool("prompt", false, "prompt for the password instead of generating one")
	force := flag.Bool("force", false, "overwrite the descriptor if it already exists")
	flag.Parse()

	if err := run(*out, *name, *prompt, *force); err != nil {
		fmt.Fprintf(os.Stderr, "rootgen: %v\n", err)
		os.Exit(1)
	}
}

func run(out, name string, prompt, force bool) error {
	if err := validation.ValidateUsername(name); err != nil {
		return err
	}

	// Не затираем существующий дескриптор молча: там может лежать
	// пароль, который еще никуда не записан кроме этого файла
	if !force {
		if _, err := os.Stat(out); err == nil {
			return fmt.Errorf("%s already exists, use -force to overwrite", out)
		}
	}

	var pass string
	var err error
	if prompt {
		pass, err = readPassword()
	} else {
		pass, err = generatePassword()
	}
	if err != nil {
		return err
	}

	if err := validation.ValidatePassword(pass); err != nil {
		return err
	}

	if err := writeDescriptor(out, name, pass); err != nil {
		return err
	}

	fmt.Printf("wrote %s for account %q\n", out, name)
	if !prompt {
		fmt.Println("generated password is stored only in the descriptor file")
	}
	return nil
}

// readPassword дважды читает пароль с терминала без эха
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("-prompt requires an interactive terminal")
	}

	fmt.Print("Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Print("Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}

// generatePassword возвращает hex от случайных байт
func generatePassword() (string, error) {
	buf := make([]byte, passwordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// writeDescriptor пишет TOML атомарно и с правами 0600:
// дескриптор содержит пароль открытым текстом
func writeDescriptor(path, name, pass string) error {
	doc := struct {
		Credentials models.RootCredentials `toml:"credentials"`
	}{
		Credentials: models.RootCredentials{Name: name, Pass: pass},
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create descriptor: %w", err)
	}

	if err := toml.NewEncoder(f).Encode(doc); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode descriptor: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write descriptor: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move descriptor into place: %w", err)
	}
	return nil
}
