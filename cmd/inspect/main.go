package main

import (
	"chat-sync/domain"
	"chat-sync/repositories"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

const previewLength = 48

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	conversation := flag.String("conversation", "", "Print the timeline of one conversation")
	colours := flag.Bool("colours", true, "Colorize output")
	flag.Parse()
	color.Enable = *colours

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	snapshot, found, err := repositories.NewSnapshotRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil))).Load()
	if err != nil {
		log.Fatal(err)
	}
	if !found {
		fmt.Println("No snapshot stored")
		return
	}

	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render(fmt.Sprintf("  ====== Snapshot of %s ======", snapshot.LocalUserID)))
	if *conversation == "" {
		printConversations(snapshot)
		return
	}
	cs, ok := lo.Find(snapshot.Conversations, func(c domain.ConversationSnapshot) bool {
		return c.Key == domain.ConversationKey(*conversation)
	})
	if !ok {
		log.Fatalf("Conversation %q not found", *conversation)
	}
	printTimeline(snapshot.LocalUserID, cs)
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
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
	return table
}

func printConversations(snapshot domain.Snapshot) {
	table := newTable("Conversation", "Messages", "Unread", "Cursor", "Last activity", "Last message")
	for _, c := range snapshot.Conversations {
		unread := fmt.Sprint(c.UnreadCount)
		if c.UnreadCount > 0 {
			unread = color.FgYellow.Render(unread)
		}
		lastAt, lastText := "--:--:--", ""
		if c.LastMessage != nil {
			lastAt = c.LastMessage.Timestamp.Format(time.DateTime)
			lastText = preview(c.LastMessage.Text)
		}
		table.Append([]string{
			string(c.Key),
			fmt.Sprint(len(c.Messages)),
			unread,
			lo.FromPtrOr(c.Cursor, "-"),
			lastAt,
			lastText,
		})
	}
	table.Render()
}

func printTimeline(localUserID string, c domain.ConversationSnapshot) {
	table := newTable("ID", "Time", "From", "Text", "Flags")
	for _, m := range c.Messages {
		from := m.SenderID
		if m.IsFrom(localUserID) {
			from = color.FgCyan.Render("me")
		}
		text := preview(m.Text)
		if m.Deleted {
			text = color.FgGray.Render(text)
		}
		table.Append([]string{m.ID, m.Timestamp.Format("15:04:05"), from, text, flags(m)})
	}
	table.Render()
}

func flags(m domain.Message) string {
	var res []string
	if m.EditedAt != nil {
		res = append(res, "edited")
	}
	if m.Deleted {
		res = append(res, "deleted")
	}
	if len(m.Reactions) > 0 {
		res = append(res, fmt.Sprintf("%d reactions", len(m.Reactions)))
	}
	if len(m.ReadBy) > 0 {
		res = append(res, "read")
	}
	return strings.Join(res, ",")
}

func preview(text string) string {
	runes := []rune(strings.ReplaceAll(text, "\n", " "))
	if len(runes) <= previewLength {
		return string(runes)
	}
	return string(runes[:previewLength]) + "…"
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
