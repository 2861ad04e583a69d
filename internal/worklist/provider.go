package worklist

import (
	"context"
	"sort"
	"sync"
	"time"

	"camclinic/internal/domain"
)

// MockProvider serves a fixed in-memory worklist.
type MockProvider struct {
	mu       sync.RWMutex
	patients []domain.Patient
}

// NewMockProvider seeds the demo clinic worklist relative to now.
func NewMockProvider(now time.Time) *MockProvider {
	return NewProvider([]domain.Patient{
		{ID: "101", Code: "PC032512345", Name: "Nguyễn Văn An", Age: 32, Gender: "Nam", ServiceName: "Siêu âm ổ bụng tổng quát", Status: domain.PatientStatusExamining, CheckInTime: now.Add(-15 * time.Minute)},
		{ID: "102", Code: "PC032512346", Name: "Trần Thị Bích", Age: 28, Gender: "Nữ", ServiceName: "Siêu âm thai 12 tuần", Status: domain.PatientStatusWaiting, CheckInTime: now.Add(-10 * time.Minute)},
		{ID: "103", Code: "PC032512347", Name: "Lê Văn Cường", Age: 45, Gender: "Nam", ServiceName: "Siêu âm tim", Status: domain.PatientStatusWaiting, CheckInTime: now.Add(-5 * time.Minute)},
		{ID: "104", Code: "PC032512348", Name: "Phạm Thị Dung", Age: 60, Gender: "Nữ", ServiceName: "Siêu âm tuyến giáp", Status: domain.PatientStatusDone, CheckInTime: now.Add(-45 * time.Minute)},
		{ID: "105", Code: "PC032512349", Name: "Hoàng Tuấn Tú", Age: 12, Gender: "Nam", ServiceName: "Siêu âm phần mềm", Status: domain.PatientStatusWaiting, CheckInTime: now},
	})
}

func NewProvider(patients []domain.Patient) *MockProvider {
	return &MockProvider{patients: append([]domain.Patient(nil), patients...)}
}

// List returns patients being examined first, then by check-in time.
func (p *MockProvider) List(_ context.Context) ([]domain.Patient, error) {
	p.mu.RLock()
	out := append([]domain.Patient(nil), p.patients...)
	p.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		ei := out[i].Status == domain.PatientStatusExamining
		ej := out[j].Status == domain.PatientStatusExamining
		if ei != ej {
			return ei
		}
		return out[i].CheckInTime.Before(out[j].CheckInTime)
	})
	return out, nil
}

// ByID returns the patient with id, if any.
func (p *MockProvider) ByID(_ context.Context, id string) (domain.Patient, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, patient := range p.patients {
		if patient.ID == id {
			return patient, true, nil
		}
	}
	return domain.Patient{}, false, nil
}
