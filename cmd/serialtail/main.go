// Command serialtail prints the lines received on a serial port and sends the
// lines typed on stdin.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/BertoldVdb/go-serialline/lineport"
	"github.com/BertoldVdb/go-serialline/logrusconfig"
	"github.com/BertoldVdb/go-serialline/multirun"
	"github.com/BertoldVdb/go-serialline/multirunhttp"
	"github.com/BertoldVdb/go-serialline/serial"
	"github.com/sirupsen/logrus"
)

func main() {
	portName := flag.String("port", "", "Serial port to open")
	baud := flag.Int("baud", 115200, "Baud rate")
	timeout := flag.Duration("timeout", lineport.DefaultReadTimeout, "Read timeout")
	parity := flag.String("parity", "none", "Parity: none, odd, even, mark or space")
	dataBits := flag.Int("databits", lineport.DefaultDataBits, "Data bits (5-8)")
	stopBits := flag.String("stopbits", "1", "Stop bits: 1, 1.5 or 2")
	newline := flag.String("newline", "lf", "Line terminator: lf, crlf or cr")
	charset := flag.String("encoding", "", "IANA name of the character encoding, empty for UTF-8")
	clearOnTimeout := flag.Bool("clear-on-timeout", false, "Drop the unpolled line when a read times out")
	list := flag.Bool("list", false, "List serial ports and exit")
	listen := flag.String("http", "", "Serve the channel status, latest line and writes over HTTP on this address, for example :8080")
	logrusconfig.InitParam()
	flag.Parse()

	log := logrusconfig.GetPrefixedLogger(logrus.InfoLevel, "serialtail")

	if *list {
		if err := listPorts(); err != nil {
			log.WithError(err).Fatal("Failed to list serial ports")
		}
		return
	}

	cfg, err := buildConfig(*portName, *baud, *timeout, *parity, *dataBits, *stopBits, *newline, *charset, *clearOnTimeout)
	if err != nil {
		log.WithError(err).Fatal("Invalid options")
	}
	cfg.Logger = log.WithField("prefix", "lineport")

	ch, err := lineport.Open(cfg)
	if err != nil {
		os.Exit(1)
	}
	defer ch.Terminate()

	ch.OnLine(func(line string) {
		fmt.Println(line)
	})

	m := &multirun.MultiRun{Logger: log}
	m.RegisterRunnable("channel", ch)
	m.RegisterRunnable("stdin", &forwarder{input: os.Stdin, output: ch})
	if *listen != "" {
		m.RegisterRunnable("http", &multirunhttp.MultiRunHTTP{
			Handler:    newHandler(ch),
			Listen:     *listen,
			LoggerHTTP: log.WithField("prefix", "http"),
		})
	}
	m.HandleSignals(log, 5*time.Second)

	err = m.Run(nil)
	if err != nil && !errors.Is(err, multirun.ErrorClosed) {
		log.WithError(err).Error("Stopped")
		os.Exit(1)
	}
}

func buildConfig(portName string, baud int, timeout time.Duration, parity string, dataBits int, stopBits string, newline string, charset string, clearOnTimeout bool) (*lineport.Config, error) {
	cfg := &lineport.Config{
		PortName:    portName,
		BaudRate:    baud,
		ReadTimeout: timeout,
		DataBits:    dataBits,
	}

	var err error
	if cfg.Parity, err = serial.ParseParity(parity); err != nil {
		return nil, err
	}
	if cfg.StopBits, err = serial.ParseStopBits(stopBits); err != nil {
		return nil, err
	}
	if cfg.NewLine, err = parseNewline(newline); err != nil {
		return nil, err
	}
	if cfg.Encoding, err = lineport.EncodingByName(charset); err != nil {
		return nil, err
	}
	if clearOnTimeout {
		cfg.TimeoutPolicy = lineport.TimeoutClearPending
	}

	if _, err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func listPorts() error {
	ports, err := serial.List()
	if err != nil {
		return err
	}

	for _, p := range ports {
		if p.IsUSB {
			fmt.Printf("%s\tUSB %s:%s %s %s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
		} else {
			fmt.Println(p.Name)
		}
	}
	return nil
}
