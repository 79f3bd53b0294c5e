package cli_test

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/yandex/dhatfold/internal/dhatfold/cli"
)

func TestNew(t *testing.T) {
	var logs bytes.Buffer
	app, err := cli.New(&cli.Config{
		LogLevel:  "debug",
		Fs:        afero.NewMemMapFs(),
		LogOutput: &logs,
	})
	require.NoError(t, err)
	defer app.Shutdown()

	app.Logger().Info(app.Context(), "Converted profile")
	require.Contains(t, logs.String(), "DEBUG Initialized CLI")
	require.Contains(t, logs.String(), "INFO Converted profile")
	require.NotNil(t, app.Stdout())
	require.NotNil(t, app.Stdin())
}

func TestNewQuiet(t *testing.T) {
	var logs bytes.Buffer
	app, err := cli.New(&cli.Config{LogLevel: "warn", LogOutput: &logs})
	require.NoError(t, err)
	defer app.Shutdown()

	app.Logger().Info(app.Context(), "Converted profile")
	require.Empty(t, logs.String())
}

func TestNewBadLevel(t *testing.T) {
	_, err := cli.New(&cli.Config{LogLevel: "chatty"})
	require.ErrorContains(t, err, "failed to parse log level")
}
