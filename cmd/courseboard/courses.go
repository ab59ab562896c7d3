package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/conorfennell/courseboard/internal/domain"
)

// errNoEffect is returned when the store reports that an operation did not
// take effect.
var errNoEffect = errors.New("operation did not take effect")

func newCoursesCmd(a *app) *cobra.Command {
	validate := validator.New(validator.WithRequiredStructEnabled())

	cmd := &cobra.Command{
		Use:   "courses",
		Short: "Manage courses from the command line",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all courses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			courses, err := a.db.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
			for _, c := range courses {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", c.ID, c.Name, c.Description)
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME [DESCRIPTION]",
		Short: "Add a course",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			course := courseFromArgs(args)
			if err := validate.Struct(course); err != nil {
				return fmt.Errorf("course name is required")
			}
			if !a.db.Add(cmd.Context(), course) {
				return errNoEffect
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "update ID NAME [DESCRIPTION]",
		Short: "Replace the name and description of a course",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid course ID %q: %w", args[0], err)
			}
			course := courseFromArgs(args[1:])
			course.ID = id
			if err := validate.Struct(course); err != nil {
				return fmt.Errorf("course name is required")
			}
			if !a.db.Update(cmd.Context(), course) {
				return fmt.Errorf("course %d: %w", id, errNoEffect)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a course",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid course ID %q: %w", args[0], err)
			}
			if !a.db.DeleteByID(cmd.Context(), id) {
				return fmt.Errorf("course %d: %w", id, errNoEffect)
			}
			return nil
		},
	})

	return cmd
}

func courseFromArgs(args []string) domain.Course {
	course := domain.Course{Name: args[0]}
	if len(args) > 1 {
		course.Description = args[1]
	}
	return course
}
