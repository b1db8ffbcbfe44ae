// Package roster parses tabular recipient batches into validated records.
package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/DouglasAntonni/serverwpp/internal/domain"
	"go.uber.org/zap"
)

// Header names matched case-insensitively after trimming.
var (
	nameColumns       = []string{"name"}
	numberColumns     = []string{"number", "phone"}
	identifierColumns = []string{"id", "identifier"}
)

// Result reports the outcome of parsing one batch.
type Result struct {
	Recipients []domain.Recipient
	Rejected   int
}

// Parser turns a header-bearing CSV stream into recipient records. Rows
// failing validation are counted and logged, never returned; a structurally
// malformed stream aborts the whole batch.
type Parser struct {
	logger *zap.Logger
}

func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

func (p *Parser) Parse(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	// Ragged rows are a per-row problem, not a batch problem.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: batch has no header row", domain.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: malformed batch: %v", domain.ErrValidation, err)
	}

	nameIdx := columnIndex(header, nameColumns)
	numberIdx := columnIndex(header, numberColumns)
	idIdx := columnIndex(header, identifierColumns)

	if nameIdx < 0 || numberIdx < 0 {
		return nil, fmt.Errorf("%w: batch must have name and number columns, got %v", domain.ErrValidation, header)
	}

	result := &Result{}
	row := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A broken stream invalidates the whole batch, including rows
			// already parsed.
			return nil, fmt.Errorf("%w: malformed batch at row %d: %v", domain.ErrValidation, row+1, err)
		}
		row++

		recipient := domain.Recipient{
			Name:      strings.TrimSpace(field(record, nameIdx)),
			RawNumber: strings.TrimSpace(field(record, numberIdx)),
		}
		if idIdx >= 0 {
			if id := strings.TrimSpace(field(record, idIdx)); id != "" {
				recipient.Identifier = &id
			}
		}

		if err := recipient.Validate(); err != nil {
			result.Rejected++
			p.logger.Warn("recipient row rejected",
				zap.Int("row", row),
				zap.String("name", recipient.Name),
				zap.Error(err),
			)
			continue
		}

		result.Recipients = append(result.Recipients, recipient)
	}

	return result, nil
}

func columnIndex(header []string, candidates []string) int {
	for i, column := range header {
		normalized := strings.ToLower(strings.TrimSpace(column))
		for _, candidate := range candidates {
			if normalized == candidate {
				return i
			}
		}
	}
	return -1
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}
