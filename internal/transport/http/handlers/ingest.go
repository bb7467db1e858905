package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/Thomblin/heimsight/pkg/response"
)

// recordError reports one invalid record inside a REST ingest batch.
type recordError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// decodeSingleOrBatch reads a JSON body holding either one record or an
// array of records.
func decodeSingleOrBatch[T any](c *gin.Context) ([]*T, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty request body")
	}

	if trimmed[0] == '[' {
		var records []*T
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		return records, nil
	}

	var record T
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return []*T{&record}, nil
}

// validatable is any record carrying its own schema check.
type validatable interface {
	Validate() error
}

// splitValid partitions records into the valid subset and indexed errors.
func splitValid[T validatable](records []T) ([]T, []recordError) {
	valid := make([]T, 0, len(records))
	var errs []recordError
	for i, r := range records {
		if err := r.Validate(); err != nil {
			errs = append(errs, recordError{Index: i, Error: err.Error()})
			continue
		}
		valid = append(valid, r)
	}
	return valid, errs
}

// respondIngest writes the ingest outcome: 201 when every record was
// accepted, 400 with the error list otherwise. The valid subset has already
// been committed either way.
func respondIngest(c *gin.Context, accepted int, errs []recordError) {
	if len(errs) == 0 {
		response.Created(c, gin.H{"accepted": accepted})
		return
	}
	details, _ := json.Marshal(errs)
	c.JSON(400, response.APIResponse{
		Success: false,
		Data:    gin.H{"accepted": accepted, "rejected": len(errs), "errors": errs},
		Error: &response.APIError{
			Code:    "VALIDATION_FAILED",
			Message: fmt.Sprintf("%d record(s) failed validation", len(errs)),
			Details: string(details),
		},
	})
}
