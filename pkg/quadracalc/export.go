package quadracalc

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/himanishpuri/quadracalc/internal/subdivision"
	"github.com/himanishpuri/quadracalc/pkg/models"
)

// ExportDocument is the JSON document produced by Export.
type ExportDocument struct {
	BPM                int                                          `json:"bpm"`
	SampleRate         int                                          `json:"sampleRate"`
	Generated          string                                       `json:"generated"`
	Subdivisions       map[subdivision.Category][]subdivision.Delay `json:"subdivisions"`
	CustomSubdivisions []models.CustomSubdivision                   `json:"customSubdivisions"`
}

func (s *Service) Export() (ExportDocument, error) {
	bpm := s.CurrentBPM()
	groups, err := s.DelaysFor(bpm)
	if err != nil {
		return ExportDocument{}, err
	}

	byCat := make(map[subdivision.Category][]subdivision.Delay, len(groups))
	for _, g := range groups {
		byCat[g.Category] = g.Delays
	}

	customs := s.Subdivisions()
	if customs == nil {
		customs = []models.CustomSubdivision{}
	}

	return ExportDocument{
		BPM:                bpm,
		SampleRate:         s.Settings().SampleRate,
		Generated:          s.config.Now().UTC().Format(time.RFC3339Nano),
		Subdivisions:       byCat,
		CustomSubdivisions: customs,
	}, nil
}

// ExportJSON returns the export document indented with two spaces.
func (s *Service) ExportJSON() ([]byte, error) {
	doc, err := s.Export()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ExportFilename is the suggested download name for the current tempo.
func (s *Service) ExportFilename() string {
	return fmt.Sprintf("quadra-calc-%dbpm.json", s.CurrentBPM())
}

// ShareText is the short summary offered to the share sheet.
func (s *Service) ShareText() string {
	bpm := s.CurrentBPM()
	f := s.Formatter()
	return fmt.Sprintf("Delay Times for %d BPM\n\nQuarter: %s\nEighth: %s\n\nCalculated with quadra.calc",
		bpm, f.Format(60000/float64(bpm)), f.Format(30000/float64(bpm)))
}

// CopyAllText lists every subdivision in the configured unit.
func (s *Service) CopyAllText() (string, error) {
	bpm := s.CurrentBPM()
	groups, err := s.DelaysFor(bpm)
	if err != nil {
		return "", err
	}
	f := s.Formatter()

	var b strings.Builder
	fmt.Fprintf(&b, "Delay Times for %d BPM\n\n", bpm)
	for _, g := range groups {
		fmt.Fprintf(&b, "%s:\n", g.Category)
		for _, d := range g.Delays {
			fmt.Fprintf(&b, "  %s: %s\n", d.Name, f.Format(d.Ms))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}
