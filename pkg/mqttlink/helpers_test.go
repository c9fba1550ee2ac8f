package mqttlink

import (
	"context"
	"dancavallaro.com/devicectl/pkg/commands"
	"github.com/stretchr/testify/require"
	"testing"
)

type senderFunc func(ctx context.Context, command string) (int, error)

func (f senderFunc) Send(ctx context.Context, command string) (int, error) {
	return f(ctx, command)
}

func mustTable(t *testing.T) *commands.Table {
	table, err := commands.NewTable(
		commands.Mode{ID: "A", Start: "!as\r\n", Stop: "!ap\r\n"},
		commands.Mode{ID: "B", Start: "!bs\r\n", Stop: "!bp\r\n"},
	)
	require.NoError(t, err)
	return table
}
