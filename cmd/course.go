package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/store"
)

var courseCmd = &cobra.Command{
	Use:   "course",
	Short: "Manage stored courses",
}

var courseImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import course documents (JSON or YAML)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			for _, path := range args {
				c, err := readCourse(path)
				if err != nil {
					return err
				}
				if err := st.Courses().Save(ctx, c, force); err != nil {
					return err
				}
				fmt.Println("imported", describeCourse(c))
			}
			return nil
		})
	},
}

var courseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored courses",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			infos, err := st.Courses().List(ctx)
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("No courses stored.")
				return nil
			}
			fmt.Printf("%-8s  %-10s  %-19s  %s\n", "ID", "Version", "Updated", "Title")
			fmt.Println(strings.Repeat("─", 72))
			for _, info := range infos {
				version := info.Version
				if version == "" {
					version = "-"
				}
				fmt.Printf("%-8s  %-10s  %-19s  %s\n",
					info.ID, version, info.UpdatedAt.Local().Format("2006-01-02 15:04:05"), info.Title)
			}
			return nil
		})
	},
}

var courseShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored course's outline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			c, err := content.NewStoreProvider(st.Courses()).Course(ctx, content.ID(args[0]))
			if err != nil {
				return err
			}
			fmt.Println(describeCourse(c))
			if c.Version != "" {
				fmt.Println("version", c.Version)
			}
			for i, l := range c.Lessons {
				fmt.Printf("\n%d. %s [%s]\n", i+1, l.Title, l.ID)
				for j, b := range l.Blocks {
					fmt.Printf("   %d.%d  %-11s %s [%s]\n", i+1, j+1, b.Type, b.Title, b.ID)
				}
			}
			return nil
		})
	},
}

var courseDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a course and its progress records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, st *store.Store) error {
			if err := st.Courses().Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println("deleted course", args[0])
			return nil
		})
	},
}

func init() {
	courseImportCmd.Flags().Bool("force", false, "Replace a stored course even with an older version")

	courseCmd.AddCommand(courseImportCmd)
	courseCmd.AddCommand(courseListCmd)
	courseCmd.AddCommand(courseShowCmd)
	courseCmd.AddCommand(courseDeleteCmd)
}

// withStore runs fn against the configured database.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	st, err := openStore(cmd, e.cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cmd.Context(), st)
}

// readCourse decodes path as YAML when its extension says so, JSON
// otherwise. "-" reads JSON from stdin.
func readCourse(path string) (*content.Course, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}

	var (
		c   *content.Course
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		c, err = content.DecodeYAML(r)
	default:
		c, err = content.Decode(r)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
