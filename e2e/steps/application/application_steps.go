package application

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	Do(method, path string, body any) (int, []byte, error)
	Request(method, path string, body any) error
	Upload(path, fileName string, payload []byte) error
	Status() int
	Body() []byte
	ResponseField(path string) (any, error)
	Remember(key, value string)
}

var pdfProof = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

// RegisterSteps registers application lifecycle step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &applicationSteps{tc: tc}

	// Setup steps
	ctx.Step(`^a submitted application for the estate of "([^"]*)"$`, steps.submittedApplication)
	ctx.Step(`^the application is ready for review$`, steps.readyForReview)
	ctx.Step(`^the application has been approved$`, steps.approved)

	// Action steps
	ctx.Step(`^I look up the application by its acknowledgement code$`, steps.lookUpByAck)
	ctx.Step(`^I upload a PDF proof named "([^"]*)"$`, steps.uploadPDF)
	ctx.Step(`^I upload a file named "([^"]*)" containing "([^"]*)"$`, steps.uploadFile)
	ctx.Step(`^I record the family tree:$`, steps.recordFamilyTree)
	ctx.Step(`^the certificate is issued$`, steps.issueCertificate)
	ctx.Step(`^(\d+) staff members issue the certificate at the same time$`, steps.issueConcurrently)

	// Assertion steps
	ctx.Step(`^exactly (\d+) issuance should succeed and the rest should conflict$`, steps.issuanceOutcome)
}

type applicationSteps struct {
	tc       TestContext
	outcomes map[int]int
}

func (s *applicationSteps) submittedApplication(ctx context.Context, deceased string) error {
	if err := s.tc.Request(http.MethodPost, "/applications", map[string]string{
		"applicant_name": "Rahima Khatun",
		"deceased_name":  deceased,
		"date_of_death":  "2025-11-02",
	}); err != nil {
		return err
	}
	if err := s.expect(http.StatusCreated); err != nil {
		return err
	}
	if err := s.remember("data.id", "app_id"); err != nil {
		return err
	}
	return s.remember("data.ack_code", "ack_code")
}

// readyForReview assigns an officer and attaches one verified proof.
func (s *applicationSteps) readyForReview(ctx context.Context) error {
	if err := s.transition(map[string]any{"action": "assign", "staff_id": "officer-1"}); err != nil {
		return err
	}
	if err := s.uploadPDF(ctx, "death-certificate.pdf"); err != nil {
		return err
	}
	if err := s.expect(http.StatusCreated); err != nil {
		return err
	}
	if err := s.tc.Request(http.MethodPost, "/documents/{doc_id}/verify", nil); err != nil {
		return err
	}
	if err := s.expect(http.StatusOK); err != nil {
		return err
	}
	return s.transition(map[string]any{"action": "start_review"})
}

func (s *applicationSteps) approved(ctx context.Context) error {
	if err := s.readyForReview(ctx); err != nil {
		return err
	}
	return s.transition(map[string]any{
		"action":      "approve",
		"memo_number": "WR/2026/17",
		"memo_date":   "2026-03-01",
	})
}

func (s *applicationSteps) lookUpByAck(ctx context.Context) error {
	return s.tc.Request(http.MethodGet, "/applications/ack/{ack_code}", nil)
}

func (s *applicationSteps) uploadPDF(ctx context.Context, name string) error {
	return s.upload(name, pdfProof)
}

func (s *applicationSteps) uploadFile(ctx context.Context, name, content string) error {
	return s.upload(name, []byte(content))
}

func (s *applicationSteps) upload(name string, payload []byte) error {
	if err := s.tc.Upload("/applications/{app_id}/documents", name, payload); err != nil {
		return err
	}
	if s.tc.Status() == http.StatusCreated {
		return s.remember("data.id", "doc_id")
	}
	return nil
}

func (s *applicationSteps) recordFamilyTree(ctx context.Context, table *godog.Table) error {
	if len(table.Rows) < 2 {
		return fmt.Errorf("family table needs a header and at least one member")
	}
	header := make([]string, len(table.Rows[0].Cells))
	for i, c := range table.Rows[0].Cells {
		header[i] = c.Value
	}
	members := make([]map[string]string, 0, len(table.Rows)-1)
	for _, row := range table.Rows[1:] {
		m := make(map[string]string, len(header))
		for i, c := range row.Cells {
			if c.Value != "" {
				m[header[i]] = c.Value
			}
		}
		members = append(members, m)
	}
	if err := s.tc.Request(http.MethodPut, "/applications/{app_id}/family", map[string]any{"members": members}); err != nil {
		return err
	}
	return s.expect(http.StatusOK)
}

func (s *applicationSteps) issueCertificate(ctx context.Context) error {
	if err := s.tc.Request(http.MethodPost, "/applications/{app_id}/certificate", nil); err != nil {
		return err
	}
	if err := s.expect(http.StatusCreated); err != nil {
		return err
	}
	return s.remember("data.id", "cert_id")
}

func (s *applicationSteps) issueConcurrently(ctx context.Context, n int) error {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	s.outcomes = map[int]int{}
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _, err := s.tc.Do(http.MethodPost, "/applications/{app_id}/certificate", nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil && firstErr == nil {
				firstErr = err
			}
			s.outcomes[status]++
		}()
	}
	wg.Wait()
	return firstErr
}

func (s *applicationSteps) issuanceOutcome(ctx context.Context, want int) error {
	total := 0
	for _, c := range s.outcomes {
		total += c
	}
	if got := s.outcomes[http.StatusCreated]; got != want {
		return fmt.Errorf("expected %d successful issuances, got %d (%v)", want, got, s.outcomes)
	}
	if got := s.outcomes[http.StatusConflict]; got != total-want {
		return fmt.Errorf("expected %d conflicts, got %d (%v)", total-want, got, s.outcomes)
	}
	return nil
}

func (s *applicationSteps) transition(body map[string]any) error {
	if err := s.tc.Request(http.MethodPost, "/applications/{app_id}/transitions", body); err != nil {
		return err
	}
	return s.expect(http.StatusOK)
}

func (s *applicationSteps) expect(status int) error {
	if got := s.tc.Status(); got != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, got, s.tc.Body())
	}
	return nil
}

func (s *applicationSteps) remember(field, key string) error {
	v, err := s.tc.ResponseField(field)
	if err != nil {
		return err
	}
	s.tc.Remember(key, fmt.Sprint(v))
	return nil
}
