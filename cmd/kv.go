package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Set stores a value under key. The value is parsed as JSON when possible
// so numbers, booleans and objects keep their types; anything else is
// stored as a plain string. "-" reads the value from stdin.
func Set(configPath, key, value string) {
	m, err := OpenManager(configPath)
	if err != nil {
		HandleError(err)
	}
	defer m.Close()

	if value == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			HandleError(fmt.Errorf("failed to read stdin: %w", err))
		}
		value = string(data)
	}

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}

	if err := m.Write(key, parsed); err != nil {
		HandleError(err)
	}
}

// Get prints the value stored under key. A missing key is reported on
// stderr with a distinct exit code so scripts can tell "absent" from
// "failed".
func Get(configPath, key string) {
	m, err := OpenManager(configPath)
	if err != nil {
		HandleError(err)
	}
	defer m.Close()

	var value any
	found, err := m.Read(key, &value)
	if err != nil {
		HandleError(err)
	}
	if !found {
		fmt.Fprintf(os.Stderr, "Key not found: %s\n", key)
		os.Exit(2)
	}

	switch v := value.(type) {
	case string:
		fmt.Println(v)
	default:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			HandleError(err)
		}
		fmt.Println(string(out))
	}
}

// Rm deletes key from the store. Removing an absent key succeeds.
func Rm(configPath, key string) {
	m, err := OpenManager(configPath)
	if err != nil {
		HandleError(err)
	}
	defer m.Close()

	if err := m.Delete(key); err != nil {
		HandleError(err)
	}
}

// Ls lists all stored keys.
func Ls(configPath string) {
	m, err := OpenManager(configPath)
	if err != nil {
		HandleError(err)
	}
	defer m.Close()

	keys, err := m.Keys()
	if err != nil {
		HandleError(err)
	}
	for _, key := range keys {
		fmt.Println(key)
	}
}
