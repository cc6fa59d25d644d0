package main

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmofsigns/progress-engine/internal/application/command"
)

func TestParseReset(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want command.ResetPointsCommand
	}{
		{"weekly", []string{"-weekly"}, command.ResetPointsCommand{Weekly: true}},
		{"both", []string{"-weekly", "-monthly"}, command.ResetPointsCommand{Weekly: true, Monthly: true}},
		{"all", []string{"-all"}, command.ResetPointsCommand{All: true}},
		{"auto", []string{"--auto"}, command.ResetPointsCommand{Auto: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseReset(tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReset_Invalid(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"-daily"},
		{"-weekly", "extra"},
	} {
		_, err := parseReset(args)
		assert.ErrorIs(t, err, errUsage, "%v", args)
	}
}

func TestRun_Usage(t *testing.T) {
	assert.ErrorIs(t, run(context.Background(), nil, io.Discard), errUsage)

	t.Setenv("APP_TIMEZONE", "UTC")
	assert.ErrorIs(t, run(context.Background(), []string{"frobnicate"}, io.Discard), errUsage)
}
