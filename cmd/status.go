package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursetape/internal/engine"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show listening progress per course",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log := newLogger(cfg)
		defer log.Sync()

		session, err := engine.Open(cmd.Context(), cfg, log)
		if err != nil {
			return fmt.Errorf("open session: %w", err)
		}
		defer session.Close()

		for _, course := range session.Catalog.Courses() {
			seq := session.Catalog.Sequence(course.ID)
			completed := session.Progress.CompletedByLesson()
			done := 0
			for _, id := range seq {
				if completed[id] {
					done++
				}
			}

			badge := ""
			if session.Progress.IsInReviewMode(course.ID) {
				badge = "  [review mode]"
			}
			fmt.Printf("%s — %d/%d lessons%s\n", course.Title, done, len(seq), badge)

			statuses := session.LessonStatuses(course.ID, "")
			for _, id := range seq {
				lesson, ok := session.Catalog.Lesson(id)
				if !ok {
					continue
				}
				st := statuses[id]
				marker := "[ ]"
				switch {
				case st.IsCompleted:
					marker = "[x]"
				case st.IsLocked:
					marker = " · "
				}
				fmt.Printf("  %s %s\n", marker, lesson.Title)
			}
		}
		return nil
	},
}
