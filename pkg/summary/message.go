package summary

import (
	"os"

	"github.com/calvinalkan/mailsummary/pkg/intern"
)

// Message describes one message of a folder.
//
// Sender, Recipient and Subject index the folder's string table, ID and
// Refs its Message-ID table. [intern.NoEntry] marks an absent value.
type Message struct {
	Sender    int32
	Recipient int32
	Subject   int32

	// Date is unix seconds.
	Date  int32
	Flags Flags

	// Offset and Length locate the message in the mailbox, including its
	// "From " line.
	Offset int64
	Length int64

	// StatusOffset is the position of the X-Mozilla-Status header relative
	// to Offset, or 0 when the message has none.
	StatusOffset int32
	Lines        int64

	ID   int32
	Refs []int32
}

// Tables are the per-folder intern tables that [Message] indexes.
type Tables struct {
	Strings *intern.Table[string]
	IDs     *intern.IDTable
}

// NewTables returns empty tables.
func NewTables() *Tables {
	return &Tables{
		Strings: intern.NewTable[string](0),
		IDs:     intern.NewIDTable(0),
	}
}

// Folder is the mailbox side of a summary.
//
// Readers hand decoded messages to AddMessage in file order and only after
// the whole file decoded cleanly. Writers read Messages and resolve their
// indices through Tables.
type Folder interface {
	// Stat describes the live mailbox file.
	Stat() (os.FileInfo, error)

	Tables() *Tables
	AddMessage(m *Message)
	Messages() []*Message

	// ParsedThrough is the mailbox offset up to which Messages is complete.
	ParsedThrough() int64
}

// Counts are the four folder totals kept in the summary header.
type Counts struct {
	Total        int64
	Undeleted    int64
	Unread       int64
	DeletedBytes int64
}

// CountMessages recounts msgs. Deleted messages count towards Total and
// DeletedBytes only; unread is counted independently of deletion.
func CountMessages(msgs []*Message) Counts {
	c := Counts{Total: int64(len(msgs))}

	for _, m := range msgs {
		if m.Flags.Has(FlagDeleted) {
			c.DeletedBytes += m.Length
		} else {
			c.Undeleted++
		}

		if !m.Flags.Has(FlagRead) {
			c.Unread++
		}
	}

	return c
}
