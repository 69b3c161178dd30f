// Package multirun runs a group of blocking workers and stops all of them as
// soon as one fails.
package multirun

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/BertoldVdb/go-serialline/closeflag"
	"github.com/sirupsen/logrus"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrorClosed is returned by Run when the group was closed
	ErrorClosed = Error("The multirun was closed")
)

// Runnable specifies an object with a blocking Run method and a Close method that makes Run return.
type Runnable interface {
	Run() error
	Close() error
}

// RunnableReady is a Runnable that signals when it finished starting up. The
// next item is only started after ready was called.
type RunnableReady interface {
	Run(ready func()) error
	Close() error
}

// MultiRun runs multiple Runnable objects
type MultiRun struct {
	sync.Mutex

	// Logger receives start and stop events of the items, it may be nil
	Logger *logrus.Entry

	items          []namedItem
	running        []bool
	runningUpdated chan (int)
	closeflag      closeflag.CloseFlag
}

type namedItem struct {
	name string
	RunnableReady
}

type wrapperRunnable struct {
	item Runnable
}

func (w *wrapperRunnable) Run(ready func()) error {
	ready()
	return w.item.Run()
}

func (w *wrapperRunnable) Close() error {
	return w.item.Close()
}

type wrapperFunc struct {
	sync.Mutex
	runCb   func() error
	closeCb func() error
	doClose bool
}

func (w *wrapperFunc) Run(ready func()) error {
	err := w.runCb()
	if err == nil {
		if w.closeCb != nil {
			w.Lock()
			w.doClose = true
			w.Unlock()
		}

		ready()
	}
	return err
}

func (w *wrapperFunc) Close() error {
	w.Lock()
	doClose := w.doClose
	w.doClose = false
	w.Unlock()

	if doClose {
		return w.closeCb()
	}
	return nil
}

// RegisterRunnableReady adds an item. Items must be registered before Run is called.
func (m *MultiRun) RegisterRunnableReady(name string, item RunnableReady) {
	m.items = append(m.items, namedItem{name: name, RunnableReady: item})
}

// RegisterRunnable adds an item that is ready as soon as Run is called
func (m *MultiRun) RegisterRunnable(name string, item Runnable) {
	m.RegisterRunnableReady(name, &wrapperRunnable{item: item})
}

// RegisterFunc adds a setup step. runCb is called in order with the other items,
// closeCb is called on shutdown only if runCb succeeded.
func (m *MultiRun) RegisterFunc(name string, runCb func() error, closeCb func() error) {
	m.RegisterRunnableReady(name, &wrapperFunc{runCb: runCb, closeCb: closeCb})
}

func (m *MultiRun) itemLog(name string) *logrus.Entry {
	if m.Logger == nil {
		return nil
	}
	return m.Logger.WithField("item", name)
}

// Run runs multiple Runnable Items and waits for all of them to complete. If one of the Runnables return
// an error, the others are also stopped.
func (m *MultiRun) Run(ready func()) error {
	/* Don't do work if we are closed already */
	if m.closeflag.IsClosed() {
		return ErrorClosed
	}

	readyChan := make(chan (struct{}), 1)
	readyFunc := func() {
		select {
		case readyChan <- struct{}{}:
		default:
		}
	}

	var wg sync.WaitGroup
	var resultMutex sync.Mutex
	var result error

	m.Lock()
	if m.running == nil {
		m.running = make([]bool, len(m.items))
		m.runningUpdated = make(chan (int), len(m.items))
	}
	m.Unlock()

loop:
	for i := range m.items {
		wg.Add(1)
		m.Lock()
		m.running[i] = true
		m.Unlock()

		go func(index int) {
			defer wg.Done()

			item := m.items[index]
			log := m.itemLog(item.name)
			if log != nil {
				log.Debug("Starting")
			}

			err := item.Run(readyFunc)
			m.runningUpdated <- index

			if log != nil {
				if err != nil {
					log.WithError(err).Error("Stopped with error")
				} else {
					log.Debug("Stopped")
				}
			}

			if err != nil {
				resultMutex.Lock()
				if result == nil {
					result = err
				}
				resultMutex.Unlock()

				m.Close()
			}
		}(i)

		select {
		/* Handle closing */
		case <-m.closeflag.Chan():
			break loop

		/* Handle ready */
		case <-readyChan:
		}
	}

	if !m.closeflag.IsClosed() {
		if ready != nil {
			ready()
		}
	}

	wg.Wait()

	resultMutex.Lock()
	defer resultMutex.Unlock()
	if result == nil && m.closeflag.IsClosed() {
		result = ErrorClosed
	}

	return result
}

// Close calls the Close method on all Items.
func (m *MultiRun) Close() error {
	err := m.closeflag.Close()
	if err != nil {
		return err
	}

	/* Close in reverse order the items were started */
	for i := len(m.items) - 1; i >= 0; i-- {
		item := m.items[i]
		err2 := item.Close()
		if err == nil {
			err = err2
		}

		m.Lock()
		if m.running != nil {
			for m.running[i] {
				m.Unlock()
				index := <-m.runningUpdated
				m.Lock()
				m.running[index] = false
			}
		}
		m.Unlock()
	}

	return err
}

// HandleSignals closes the group on SIGINT or SIGTERM. If shutting down takes
// longer than grace, or a second signal arrives, the process exits with status 1.
func (m *MultiRun) HandleSignals(log *logrus.Entry, grace time.Duration) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go m.handleSignals(c, log, grace, os.Exit)
}

func (m *MultiRun) handleSignals(c <-chan os.Signal, log *logrus.Entry, grace time.Duration, exit func(int)) {
	sig := <-c
	log.WithField("signal", sig).Info("Shutting down")

	go func() {
		select {
		case <-c:
			log.Warn("Pressed ^C a second time, quitting right away")
		case <-time.After(grace):
			log.WithField("grace", grace).Warn("Timeout during shutdown, quitting with dirty state")
		}
		exit(1)
	}()
	m.Close()
}
