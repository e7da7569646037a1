package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Backup writes a snapshot of the entire store to path.
func Backup(configPath, path string) {
	m, err := OpenManager(configPath)
	if err != nil {
		HandleError(err)
	}
	defer m.Close()

	envelope, err := m.Backup()
	if err != nil {
		HandleError(err)
	}

	if err := os.WriteFile(path, envelope, 0600); err != nil {
		HandleError(fmt.Errorf("failed to write backup: %w", err))
	}
	fmt.Printf("Backed up %s to %s\n", formatBytes(int64(len(envelope))), path)
}

// Restore replaces the store's entire state with the snapshot at path.
// A failed restore leaves the store empty, so it asks for confirmation
// unless force is set.
func Restore(configPath, path string, force bool) {
	envelope, err := os.ReadFile(path)
	if err != nil {
		HandleError(fmt.Errorf("failed to read backup: %w", err))
	}

	if !force && !confirm(fmt.Sprintf("Replace the entire store with %s? [y/N] ", path)) {
		fmt.Println("Aborted")
		return
	}

	m, err := OpenManager(configPath)
	if err != nil {
		HandleError(err)
	}
	defer m.Close()

	if err := m.Restore(envelope); err != nil {
		HandleError(err)
	}
	fmt.Println("Restore complete")
}

// Clear removes every value from the store.
func Clear(configPath string, force bool) {
	if !force && !confirm("Remove every stored value? [y/N] ") {
		fmt.Println("Aborted")
		return
	}

	m, err := OpenManager(configPath)
	if err != nil {
		HandleError(err)
	}
	defer m.Close()

	if err := m.Clear(); err != nil {
		HandleError(err)
	}
	fmt.Println("Store cleared")
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
