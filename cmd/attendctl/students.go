package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "List or remove registered students",
}

var studentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List students in name order",
	Args:  cobra.NoArgs,
	RunE:  runStudentsList,
}

var studentsDeleteCmd = &cobra.Command{
	Use:   "delete <roll_no>",
	Short: "Delete a student with their attendance and enrollment files",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudentsDelete,
}

func init() {
	studentsCmd.AddCommand(studentsListCmd, studentsDeleteCmd)
	rootCmd.AddCommand(studentsCmd)
}

func runStudentsList(cmd *cobra.Command, _ []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	students, err := e.repo.ListStudents(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLL NO\tNAME\tCLASS\tENROLLED")
	for _, st := range students {
		enrolled := "no"
		if st.Enrolled() {
			enrolled = st.EnrolledAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.RollNo, st.Name, st.Class, enrolled)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n%d student(s)\n", len(students))
	return nil
}

func runStudentsDelete(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	svc, err := e.service()
	if err != nil {
		return err
	}
	st, err := svc.DeleteStudent(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("delete %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%s)\n", st.Name, st.RollNo)
	return nil
}
