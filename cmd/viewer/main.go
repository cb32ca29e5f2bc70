package main

import (
	"chat-relay/repositories"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

// Config for the read-only store viewer. Kept separate from the relay's
// config: the viewer only needs the store path and a key prefix.
type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	Prefix         string `envconfig:"VIEWER_PREFIX" default:"gm:"`
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// Open Badger in Read-Only mode.
	// Note: BypassLockGuard allows opening if the relay holds the lock.
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	color.Cyan.Printf("Scanning %q under prefix %q\n", config.BadgerFilepath, config.Prefix)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "At", "Sender", "Target", "Body"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(config.Prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Index entries point at primary keys, nothing to render.
			if strings.HasPrefix(key, "idx:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				table.Append(toRow(key, v))
				count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Scan failed: %v", err)
	}

	table.Render()
	color.Green.Printf("%d records\n", count)
}

// toRow decodes a stored value by key family; undecodable values are shown
// raw instead of stopping the whole scan.
func toRow(key string, value []byte) []string {
	switch {
	case strings.HasPrefix(key, "dm:"):
		m, err := repositories.DecodeDirectMessage(value)
		if err != nil {
			return []string{key, "DIRECT", "", "", "", fmt.Sprintf("<undecodable: %v>", err)}
		}
		return []string{key, "DIRECT", m.SentAt.Format("2006-01-02 15:04:05"), string(m.Sender), string(m.Receiver), m.Body}
	case strings.HasPrefix(key, "gm:"):
		m, err := repositories.DecodeGroupMessage(value)
		if err != nil {
			return []string{key, "GROUP", "", "", "", fmt.Sprintf("<undecodable: %v>", err)}
		}
		return []string{key, "GROUP", m.SentAt.Format("2006-01-02 15:04:05"), string(m.Sender), string(m.Group), m.Body}
	default:
		return []string{key, "RAW", "", "", "", string(value)}
	}
}
