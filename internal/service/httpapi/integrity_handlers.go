package httpapi

import (
	"net/http"
	"time"

	"github.com/vladislavdragonenkov/fulfillment/internal/service/integrity"
)

type integrityFindingResponse struct {
	Check       string `json:"check"`
	Severity    string `json:"severity"`
	Entity      string `json:"entity,omitempty"`
	Description string `json:"description"`
	Count       int    `json:"count"`
}

type integrityReportResponse struct {
	CheckedAt time.Time                  `json:"checked_at"`
	Findings  []integrityFindingResponse `json:"findings"`
	Repaired  int                        `json:"repaired"`
}

func (s *Server) handleIntegrityCheck(w http.ResponseWriter, r *http.Request) {
	repair := r.URL.Query().Get("repair") == "true"

	report, err := s.checker.Run(r.Context(), repair)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, toIntegrityReportResponse(report))
}

func toIntegrityReportResponse(report integrity.Report) integrityReportResponse {
	findings := make([]integrityFindingResponse, 0, len(report.Findings))
	for _, finding := range report.Findings {
		findings = append(findings, integrityFindingResponse{
			Check:       finding.Check,
			Severity:    string(finding.Severity),
			Entity:      finding.Entity,
			Description: finding.Description,
			Count:       finding.Count,
		})
	}
	return integrityReportResponse{
		CheckedAt: report.CheckedAt,
		Findings:  findings,
		Repaired:  report.Repaired,
	}
}
