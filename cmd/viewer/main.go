package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"chat-mirror/internal"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// 2. Open Badger in Read-Only mode
	// BypassLockGuard allows opening while the chat client holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	printCache(db)

	// 3. Debug server, browsable view over the same data
	emptyStats := func() map[string]any {
		return map[string]any{
			"Status": "Viewer Mode (Read-Only)",
			"Time":   time.Now().Format(time.RFC822),
		}
	}

	color.Cyan.Printf("Viewer started at http://localhost:%d/inspect\n", config.DebugPort)
	internal.Inspect(db, config.DebugPort, "/inspect", MessageMapper, emptyStats, "msg:", nil)
}

func printCache(db *badger.DB) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Chat", "Time", "Sender", "Mine", "Content"})

	_ = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte("msg:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			_ = item.Value(func(val []byte) error {
				row := MessageMapper(string(item.Key()), val)
				mine := ""
				var fields structpb.Struct
				if proto.Unmarshal(val, &fields) == nil &&
					fields.GetFields()["isSentByMe"].GetBoolValue() {
					mine = "x"
				}
				table.Append([]string{row.ChatID, row.Timestamp, row.Sender, mine, row.Content})
				return nil
			})
		}
		return nil
	})
	table.Render()
}

// MessageMapper decodes cached message rows for display.
func MessageMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	var fields structpb.Struct
	if err := proto.Unmarshal(val, &fields); err != nil {
		return row
	}
	f := fields.GetFields()
	row.Sender = f["senderId"].GetStringValue()
	row.Content = f["content"].GetStringValue()
	if voice := f["voiceUrl"].GetStringValue(); voice != "" {
		row.Content = fmt.Sprintf("[voice] %s", voice)
	}
	return row
}
