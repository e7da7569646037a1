package cmd

import (
	"fmt"
)

// Status prints a summary of the store: key count, used bytes and quota.
func Status(configPath string) {
	fc, err := LoadConfig(configPath)
	if err != nil {
		HandleError(err)
	}

	m, err := OpenManager(configPath)
	if err != nil {
		HandleError(err)
	}
	defer m.Close()

	keys, err := m.Keys()
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("Store:       %s\n", m.ID())
	fmt.Printf("Keys:        %d\n", len(keys))
	fmt.Printf("Used:        %s\n", formatBytes(m.TotalSize()))
	fmt.Printf("Encryption:  %v\n", fc.Encryption)
	fmt.Printf("Compression: %v\n", fc.Compression)
}

// Compact reclaims disk space in the settings database after deletions.
func Compact(configPath string) {
	m, err := OpenManager(configPath)
	if err != nil {
		HandleError(err)
	}
	defer m.Close()

	if err := m.Compact(); err != nil {
		HandleError(err)
	}
	fmt.Println("Compacted")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
