package evaluation

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/segmentio/parquet-go"
)

// LoadFile reads labeled cases from a CSV, JSON or Parquet file
func LoadFile(path string) ([]Case, error) {
	switch format := DetectFileFormat(path); format {
	case FormatCSV:
		return loadCSV(path)
	case FormatParquet:
		return loadParquet(path)
	case FormatJSON:
		return loadJSON(path)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", format)
	}
}

// loadCSV expects a header row naming id, text, category and ground_truth
// in any order
func loadCSV(path string) ([]Case, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"id", "text", "ground_truth"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("CSV header missing %q column", required)
		}
	}
	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	var cases []Case
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record on line %d: %w", line, err)
		}

		c, err := datasetRow{
			ID:          field(record, "id"),
			Text:        field(record, "text"),
			Category:    field(record, "category"),
			GroundTruth: field(record, "ground_truth"),
		}.toCase()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func loadParquet(path string) ([]Case, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	var cases []Case
	for {
		var row datasetRow
		err := reader.Read(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet row: %w", err)
		}

		c, err := row.toCase()
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// loadJSON accepts either a JSON array of cases or one case per line
func loadJSON(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSON file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var cases []Case
		if err := json.Unmarshal(trimmed, &cases); err != nil {
			return nil, fmt.Errorf("failed to decode JSON cases: %w", err)
		}
		return cases, validateCases(cases)
	}

	var cases []Case
	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	for {
		var c Case
		err := decoder.Decode(&c)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode JSON case %d: %w", len(cases)+1, err)
		}
		cases = append(cases, c)
	}
	return cases, validateCases(cases)
}

func (r datasetRow) toCase() (Case, error) {
	c := Case{ID: strings.TrimSpace(r.ID), Text: r.Text, Category: strings.TrimSpace(r.Category)}
	if gt := strings.TrimSpace(r.GroundTruth); gt != "" {
		if err := json.Unmarshal([]byte(gt), &c.GroundTruth); err != nil {
			return Case{}, fmt.Errorf("case %s: invalid ground_truth: %w", c.ID, err)
		}
	}
	return c, validateCase(c)
}

func validateCases(cases []Case) error {
	for _, c := range cases {
		if err := validateCase(c); err != nil {
			return err
		}
	}
	return nil
}

// validateCase checks every span lies inside the text
func validateCase(c Case) error {
	if c.ID == "" {
		return errors.New("case id is required")
	}
	for _, s := range c.GroundTruth {
		if s.Start < 0 || s.End > len(c.Text) || s.Start >= s.End {
			return fmt.Errorf("case %s: span [%d,%d) out of range for text of length %d", c.ID, s.Start, s.End, len(c.Text))
		}
	}
	return nil
}

// WriteParquet writes cases in the flat Parquet layout read by LoadFile
func WriteParquet(w io.Writer, cases []Case) error {
	writer := parquet.NewWriter(w)
	for _, c := range cases {
		gt, err := json.Marshal(c.GroundTruth)
		if err != nil {
			return fmt.Errorf("case %s: %w", c.ID, err)
		}
		row := datasetRow{ID: c.ID, Text: c.Text, Category: c.Category, GroundTruth: string(gt)}
		if err := writer.Write(&row); err != nil {
			return fmt.Errorf("failed to write Parquet row: %w", err)
		}
	}
	return writer.Close()
}

// entity names a labeled substring; offsets are resolved by labeled
type entity struct {
	typ, text string
}

// labeled builds a case, locating each entity after the previous one
func labeled(id, category, text string, entities ...entity) Case {
	c := Case{ID: id, Text: text, Category: category, GroundTruth: []Span{}}
	from := 0
	for _, e := range entities {
		i := strings.Index(text[from:], e.text)
		if i < 0 {
			panic(fmt.Sprintf("benchmark case %s: %q not found", id, e.text))
		}
		start := from + i
		c.GroundTruth = append(c.GroundTruth, Span{Type: e.typ, Start: start, End: start + len(e.text), Text: e.text})
		from = start + len(e.text)
	}
	return c
}

// BuiltinCases is the default benchmark set
func BuiltinCases() []Case {
	return []Case{
		labeled("email_001", "standard", "Contact me at john.doe@example.com for more information",
			entity{"EMAIL_ADDRESS", "john.doe@example.com"}),
		labeled("email_002", "standard", "Send reports to alice.smith@company.org and bob@test.com",
			entity{"EMAIL_ADDRESS", "alice.smith@company.org"}, entity{"EMAIL_ADDRESS", "bob@test.com"}),
		labeled("email_003", "standard", "My personal email is jane_doe123@gmail.com",
			entity{"EMAIL_ADDRESS", "jane_doe123@gmail.com"}),
		labeled("phone_001", "standard", "Call me at (555) 123-4567 anytime",
			entity{"PHONE_NUMBER", "(555) 123-4567"}),
		labeled("phone_002", "standard", "Contact: 555-987-6543 or 555.111.2222",
			entity{"PHONE_NUMBER", "555-987-6543"}, entity{"PHONE_NUMBER", "555.111.2222"}),
		labeled("phone_003", "standard", "Office phone: +1-415-555-0123",
			entity{"PHONE_NUMBER", "+1-415-555-0123"}),
		labeled("name_001", "standard", "My name is Jane Smith and I work at Acme Corp",
			entity{"PERSON", "Jane Smith"}),
		labeled("name_002", "standard", "Dr. Robert Johnson will see you now",
			entity{"PERSON", "Robert Johnson"}),
		labeled("name_003", "standard", "The patient, Michael Chen, was admitted yesterday",
			entity{"PERSON", "Michael Chen"}),
		labeled("location_001", "standard", "I live at 123 Main Street, Springfield, IL 62701",
			entity{"LOCATION", "123 Main Street, Springfield, IL 62701"}),
		labeled("multi_001", "multiple", "Jane Doe (jane@example.com, 555-123-4567) is the contact person",
			entity{"PERSON", "Jane Doe"}, entity{"EMAIL_ADDRESS", "jane@example.com"}, entity{"PHONE_NUMBER", "555-123-4567"}),
		labeled("multi_002", "multiple", "Customer John Smith called from 415-555-0100 regarding his order",
			entity{"PERSON", "John Smith"}, entity{"PHONE_NUMBER", "415-555-0100"}),
		labeled("edge_001", "edge_case", "My SSN is 123-45-6789 for verification",
			entity{"US_SSN", "123-45-6789"}),
		labeled("edge_002", "edge_case", "Employee ID EMP-12345 belongs to the new hire"),
		labeled("edge_003", "edge_case", "Date of birth: 03/15/1985",
			entity{"DATE_TIME", "03/15/1985"}),
		labeled("edge_004", "edge_case", "Credit card ending in 4567"),
		labeled("edge_005", "edge_case", "IP address 192.168.1.100 accessed the system",
			entity{"IP_ADDRESS", "192.168.1.100"}),
		labeled("finance_001", "domain", "Charge card 4111 1111 1111 1111 and wire to GB82 WEST 1234 5698 7654 32",
			entity{"CREDIT_CARD", "4111 1111 1111 1111"}, entity{"IBAN_CODE", "GB82 WEST 1234 5698 7654 32"}),
		labeled("web_001", "domain", "See https://internal.example.com/reports for details",
			entity{"URL", "https://internal.example.com/reports"}),
		labeled("negative_001", "negative", "The quarterly report is due next week"),
		labeled("negative_002", "negative", "Please review the attached document and send feedback"),
	}
}
