package cli

import "testing"

func TestRootRegistersCommands(t *testing.T) {
	want := map[string]bool{
		"run":     false,
		"status":  false,
		"history": false,
		"trades":  false,
		"leaders": false,
		"cancel":  false,
		"version": false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestTradesHasRecordSubcommand(t *testing.T) {
	for _, cmd := range tradesCmd.Commands() {
		if cmd.Name() == "record" {
			return
		}
	}
	t.Fatal("trades command should carry a record subcommand")
}
