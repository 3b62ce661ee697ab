package accounts

import (
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"

	lendservice "github.com/lendlord/lendlord-sim/lend-service"
)

const (
	FileFlagName    = "accounts.file"
	EnvFileFlagName = "env-file"
)

func CLIFlags(envPrefix string) []cli.Flag {
	return []cli.Flag{
		&cli.PathFlag{
			Name:    FileFlagName,
			Usage:   "Path to a YAML or TOML file with the private keys of the admin and borrower accounts. If not set the keys are read from the environment",
			EnvVars: lendservice.PrefixEnvVar(envPrefix, "ACCOUNTS_FILE"),
		},
		&cli.PathFlag{
			Name:    EnvFileFlagName,
			Usage:   "Optional dotenv file loaded into the environment before the accounts are read",
			EnvVars: lendservice.PrefixEnvVar(envPrefix, "ENV_FILE"),
		},
	}
}

type CLIConfig struct {
	File      string
	EnvFile   string
	EnvPrefix string

	// FS holds the accounts file. Nil is the OS filesystem.
	FS afero.Fs
}

func ReadCLIConfig(ctx *cli.Context, envPrefix string) CLIConfig {
	return CLIConfig{
		File:      ctx.Path(FileFlagName),
		EnvFile:   ctx.Path(EnvFileFlagName),
		EnvPrefix: envPrefix,
	}
}

// Load builds the account book from the file, or from the environment when no file is set.
// The returned book holds an account for every role.
func (c CLIConfig) Load() (*Book, error) {
	if c.EnvFile != "" {
		if err := LoadEnvFile(c.EnvFile); err != nil {
			return nil, err
		}
	}
	var (
		book *Book
		err  error
	)
	if c.File != "" {
		var opts []FileOption
		if c.FS != nil {
			opts = append(opts, WithFS(c.FS))
		}
		book, err = LoadFile(c.File, opts...)
	} else {
		book, err = LoadEnv(c.EnvPrefix, nil)
	}
	if err != nil {
		return nil, err
	}
	if err := book.Check(); err != nil {
		return nil, err
	}
	return book, nil
}
