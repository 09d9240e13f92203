package cmd

import "testing"

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"ingest":  false,
		"ask":     false,
		"chat":    false,
		"mcp":     false,
		"version": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestAskRequiresQuestion(t *testing.T) {
	if askCmd.Args == nil {
		t.Fatal("ask has no args validator")
	}
	if err := askCmd.Args(askCmd, nil); err == nil {
		t.Error("ask with no arguments should be rejected")
	}
	if err := askCmd.Args(askCmd, []string{"what", "is", "ros"}); err != nil {
		t.Errorf("ask with arguments rejected: %v", err)
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"verbose", "json-logs"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("persistent flag %q not defined", name)
		}
	}
	if ingestCmd.Flags().Lookup("concurrency") == nil {
		t.Error("ingest flag concurrency not defined")
	}
	if askCmd.Flags().Lookup("session") == nil {
		t.Error("ask flag session not defined")
	}
}
