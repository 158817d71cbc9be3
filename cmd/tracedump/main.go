package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/danmuck/tcpbmock/internal/logging"
	"github.com/danmuck/tcpbmock/internal/trace"
	"github.com/rs/zerolog/log"
)

func main() {
	brief := flag.Bool("brief", false, "omit message bodies")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: tracedump [-brief] trace.bin [trace.bin ...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	logging.ConfigureRuntime()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	status := 0
	for _, path := range flag.Args() {
		t, err := trace.LoadFile(path)
		if err != nil {
			log.Error().Msgf("tracedump path=%q err=%v", path, err)
			status = 1
			continue
		}
		dump(os.Stdout, t, *brief)
	}
	os.Exit(status)
}

func dump(w io.Writer, t trace.Trace, brief bool) {
	fmt.Fprintf(w, "# %s (%d entries)\n", t.Source(), t.Len())
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tOFFSET\tTYPE\tLEN\tMESSAGE")
	for i, e := range t.Entries() {
		body := ""
		if !brief {
			body = e.Message.String()
		}
		fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%s\n", i, e.Offset, e.Type, len(e.Message.Marshal()), body)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "# %d bytes\n", len(t.Encode()))
}
