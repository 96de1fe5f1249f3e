package core

import (
	"context"
	"time"

	"clockreport.service/internal/core/model"
	"github.com/rs/zerolog/log"
)

type sectionDef struct {
	key          model.SectionKey
	title        string
	timeHeading  string
	emptyMessage string
}

var sectionDefs = []sectionDef{
	{model.SectionCurrent, "Logged In Users", "Clock In Time", "No users currently logged in."},
	{model.SectionStale, "Users Not Logged Out", "Clock In Time", "No users logged in more than 24 hours ago without logging out."},
	{model.SectionRecent, "Last 10 Logged Out Users", "Clock Out Time", "No users have logged out recently."},
}

// BuildReport runs the three report queries and resolves display names. A
// failing query only marks its own section; the report itself always comes back.
func (s *ReportService) BuildReport(ctx context.Context) model.Report {
	now := s.now()
	report := model.Report{GeneratedAt: now.UTC()}

	for _, def := range sectionDefs {
		section := model.Section{
			Key:          def.key,
			Title:        def.title,
			TimeHeading:  def.timeHeading,
			EmptyMessage: def.emptyMessage,
		}

		entries, err := s.load(ctx, def.key, now)
		if err != nil {
			log.Ctx(ctx).Error().Err(err).Str("section", string(def.key)).Msg("Report section failed")
			section.Err = err
		} else {
			for i := range entries {
				entries[i].DisplayName = s.ResolveDisplayName(ctx, entries[i].UserRef)
			}
			section.Entries = entries
		}

		report.Sections = append(report.Sections, section)
	}

	return report
}

func (s *ReportService) load(ctx context.Context, key model.SectionKey, now time.Time) ([]model.ReportEntry, error) {
	switch key {
	case model.SectionCurrent:
		return s.CurrentlyClockedIn(ctx, now)
	case model.SectionStale:
		return s.StaleClockIns(ctx, now)
	default:
		return s.RecentClockOuts(ctx)
	}
}
