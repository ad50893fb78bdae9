package court

import "github.com/rmoreira/hearing-sync/internal/hearing"

// scheduleResponse mirrors the schedule API's JSON envelope. Only the fields
// the sync pipeline consumes are declared; anything else is ignored.
type scheduleResponse struct {
	Result []scheduleEntry `json:"resultado"`
}

type scheduleEntry struct {
	Date     string `json:"dataInicio"`
	Schedule struct {
		StartTime string `json:"horaInicial"`
	} `json:"pautaAudienciaHorario"`
	Process struct {
		Number string `json:"numero"`
		Court  struct {
			Description string `json:"descricao"`
		} `json:"orgaoJulgador"`
	} `json:"processo"`
	Claimant struct {
		Name string `json:"nome"`
	} `json:"poloAtivo"`
	Respondent struct {
		Name string `json:"nome"`
	} `json:"poloPassivo"`
	Kind struct {
		Description string `json:"descricao"`
	} `json:"tipo"`
	Status string `json:"statusDescricao"`
}

// records converts the envelope into domain records for one system,
// normalizing the date to dd/mm/yyyy and dropping entries missing a process
// number or a parseable date. Returns the surviving records and the dropped
// count.
func (r scheduleResponse) records(systemID string) ([]hearing.Record, int) {
	records := make([]hearing.Record, 0, len(r.Result))
	dropped := 0
	for _, entry := range r.Result {
		date := hearing.ParseDate(entry.Date)
		if date.IsZero() || entry.Process.Number == "" {
			dropped++
			continue
		}
		records = append(records, hearing.Record{
			SystemID:      systemID,
			ProcessNumber: entry.Process.Number,
			Date:          hearing.FormatDate(date),
			Time:          entry.Schedule.StartTime,
			Claimant:      entry.Claimant.Name,
			Respondent:    entry.Respondent.Name,
			Venue:         entry.Process.Court.Description,
			Kind:          entry.Kind.Description,
			Status:        entry.Status,
		})
	}
	return records, dropped
}
