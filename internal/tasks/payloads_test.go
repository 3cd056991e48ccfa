package tasks

import (
	"encoding/json"
	"testing"
)

func TestNewPDFGenerateTask(t *testing.T) {
	task, err := NewPDFGenerateTask(PDFGeneratePayload{ExportID: "e1", AdID: "a1", Region: "MIDWEST", Zoom: 0.5})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TypePDFGenerate {
		t.Fatalf("type %s", task.Type())
	}
	var p PDFGeneratePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.ExportID != "e1" || p.Region != "MIDWEST" || p.Zoom != 0.5 {
		t.Fatalf("payload %+v", p)
	}

	if _, err := NewPDFGenerateTask(PDFGeneratePayload{AdID: "a1"}); err == nil {
		t.Fatalf("expected error without export id")
	}
}
