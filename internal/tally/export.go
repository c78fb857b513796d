package tally

import (
	"bufio"
	"io"
	"strings"

	"varulv/internal/domain"
)

// csvHeader names the exported columns: voter, vote, time
const csvHeader = "Röstgivare,Röst,Tidpunkt"

// WriteCSV writes (voter, target, timestamp) triples in the order given, every field quoted
func WriteCSV(w io.Writer, events []domain.VoteEvent) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(csvHeader + "\n"); err != nil {
		return err
	}
	for _, e := range events {
		line := quote(string(e.Voter)) + "," + quote(string(e.Target)) + "," + quote(e.Timestamp.Raw) + "\n"
		if _, err := bw.WriteString(line); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}
