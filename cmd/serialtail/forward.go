package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/BertoldVdb/go-serialline/closeflag"
)

type lineWriter interface {
	Write(text string) error
}

// forwarder writes every line read from input to a channel
type forwarder struct {
	input  io.Reader
	output lineWriter
	stop   closeflag.CloseFlag
}

func (f *forwarder) Run() error {
	lines := make(chan (string))
	scanDone := make(chan (error), 1)

	go func() {
		scanner := bufio.NewScanner(f.input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-f.stop.Chan():
				return
			}
		}
		scanDone <- scanner.Err()
	}()

	for {
		select {
		case <-f.stop.Chan():
			return nil

		case err := <-scanDone:
			/* EOF on input is not a reason to stop listening */
			return err

		case line := <-lines:
			if err := f.output.Write(strings.TrimRight(line, "\r")); err != nil {
				return err
			}
		}
	}
}

func (f *forwarder) Close() error {
	f.stop.Close()
	return nil
}

func parseNewline(name string) (string, error) {
	switch strings.ToLower(name) {
	case "lf", "":
		return "\n", nil
	case "crlf":
		return "\r\n", nil
	case "cr":
		return "\r", nil
	}
	return "", fmt.Errorf("unknown line terminator %q, use lf, crlf or cr", name)
}
