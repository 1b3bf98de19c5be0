// Package ledger реализует журнал пожертвований, допускающий только добавление записей.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mmeshcher/pledge-service/internal/model"
)

// TimestampLayout задаёт формат времени записи в журнале.
const TimestampLayout = "1/2/2006, 3:04:05 PM"

// ErrClosed возвращается при попытке записи после остановки журнала.
var ErrClosed = errors.New("ledger writer closed")

// Recorder описывает получателя записей журнала.
type Recorder interface {
	Append(ctx context.Context, rec model.LedgerRecord) error
}

// RecorderFunc позволяет использовать функцию как Recorder.
type RecorderFunc func(ctx context.Context, rec model.LedgerRecord) error

// Append вызывает f(ctx, rec).
func (f RecorderFunc) Append(ctx context.Context, rec model.LedgerRecord) error {
	return f(ctx, rec)
}

// Multi передаёт каждую запись всем вложенным получателям и объединяет их ошибки.
type Multi []Recorder

// Append записывает rec во все получатели, не прерываясь на первой ошибке.
func (m Multi) Append(ctx context.Context, rec model.LedgerRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type appendRequest struct {
	row    []byte
	result chan error
}

// CSVWriter дописывает записи в текстовый файл с заголовком. Все записи выполняет
// единственная горутина Run, поэтому строки параллельных запросов не перемешиваются.
type CSVWriter struct {
	path     string
	requests chan appendRequest
	done     chan struct{}
}

// NewCSVWriter создаёт журнал в файле path. Запись начинается после запуска Run.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{
		path:     path,
		requests: make(chan appendRequest),
		done:     make(chan struct{}),
	}
}

// Path возвращает путь к файлу журнала.
func (w *CSVWriter) Path() string {
	return w.path
}

// Run обрабатывает запросы на запись до отмены контекста.
func (w *CSVWriter) Run(ctx context.Context) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			req.result <- w.write(req.row)
		}
	}
}

// Append добавляет запись в конец журнала и дожидается результата записи.
func (w *CSVWriter) Append(ctx context.Context, rec model.LedgerRecord) error {
	req := appendRequest{
		row:    FormatRow(rec),
		result: make(chan error, 1),
	}

	select {
	case w.requests <- req:
	case <-w.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("append ledger record: %w", ctx.Err())
	}

	return <-req.result
}

func (w *CSVWriter) write(row []byte) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger: %w", err)
	}

	buf := row
	if info.Size() == 0 {
		buf = append(Header(), row...)
	}

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}

	return nil
}

// Header возвращает строку заголовка журнала.
func Header() []byte {
	return []byte(strings.Join(model.LedgerColumns, ",") + "\n")
}

// FormatRow форматирует запись в одну строку, где каждое поле заключено в кавычки.
func FormatRow(rec model.LedgerRecord) []byte {
	fields := rec.Fields(TimestampLayout)

	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quote(f))
	}
	b.WriteByte('\n')

	return []byte(b.String())
}

var sanitizer = strings.NewReplacer(`"`, `""`, "\r\n", " ", "\n", " ", "\r", " ")

func quote(v string) string {
	return `"` + sanitizer.Replace(v) + `"`
}
