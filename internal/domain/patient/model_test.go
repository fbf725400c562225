package patient

import (
	"testing"

	"github.com/google/uuid"
)

func TestPatient_AssignedTo(t *testing.T) {
	ana, ben := uuid.New(), uuid.New()

	byCode := map[string]Patient{
		"P-001": {Code: "P-001", AssignedTherapistID: &ana},
		"P-002": {Code: "P-002"},
	}

	// stored by value, as in-memory repositories and fixtures do
	if !byCode["P-001"].AssignedTo(ana) {
		t.Error("expected P-001 to be assigned to ana")
	}
	if byCode["P-001"].AssignedTo(ben) {
		t.Error("expected P-001 not to be assigned to ben")
	}
	if byCode["P-002"].AssignedTo(ana) {
		t.Error("expected unassigned patient to match nobody")
	}
	if byCode["P-002"].AssignedTo(uuid.Nil) {
		t.Error("expected unassigned patient not to match the nil id")
	}

	p := &Patient{AssignedTherapistID: &ben}
	if !p.AssignedTo(ben) {
		t.Error("expected pointer receiver call to work")
	}
}
