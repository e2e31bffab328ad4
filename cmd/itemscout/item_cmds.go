package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"itemscout/internal/client"
)

func (a *app) itemsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Browse and manage items",
	}
	cmd.AddCommand(
		a.itemsListCmd(),
		a.itemsShowCmd(),
		a.itemsCreateCmd(),
		a.itemsEditCmd(),
		a.itemsDeleteCmd(),
	)
	return cmd
}

func (a *app) itemsListCmd() *cobra.Command {
	var (
		page, limit int
		search      string
		all         bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List items, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if all {
				feed := client.NewFeed(a.client, limit)
				if err := feed.Search(cmd.Context(), search); err != nil {
					return err
				}
				for feed.HasMore() {
					if err := feed.LoadMore(cmd.Context()); err != nil {
						return err
					}
				}
				items := feed.Items()
				printItems(out, items)
				fmt.Fprintf(out, "%d items\n", len(items))
				return nil
			}

			var (
				result *client.ItemPage
				err    error
			)
			if search != "" {
				result, err = a.client.SearchItems(cmd.Context(), search, page, limit)
			} else {
				result, err = a.client.ListItems(cmd.Context(), page, limit)
			}
			if err != nil {
				return err
			}
			printItems(out, result.Items)
			fmt.Fprintf(out, "page %d of %d (%d items)\n", result.Page, result.Pages, result.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", client.DefaultPageSize, "items per page")
	cmd.Flags().StringVar(&search, "search", "", "only items whose name contains this text")
	cmd.Flags().BoolVar(&all, "all", false, "fetch every page")
	return cmd
}

func printItems(out io.Writer, items []client.Item) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCOORDINATES\tCREATED")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.ID, item.Name, item.Coordinates, item.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func (a *app) itemsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one item and who created it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			item, err := a.client.GetItem(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			creator := item.User
			if owner, err := a.client.GetUser(cmd.Context(), item.User); err == nil {
				creator = owner.Name
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:        %s\n", item.Name)
			fmt.Fprintf(out, "Description: %s\n", item.Description)
			if item.Coordinates != "" {
				fmt.Fprintf(out, "Coordinates: %s\n", item.Coordinates)
			}
			if item.Image != "" {
				fmt.Fprintf(out, "Image:       %s\n", item.Image)
			}
			fmt.Fprintf(out, "Created by:  %s\n", creator)
			fmt.Fprintf(out, "Created at:  %s\n", item.CreatedAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
}

func (a *app) itemsCreateCmd() *cobra.Command {
	var input client.ItemInput
	var imagePath string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add an item, optionally with a photo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			if imagePath != "" {
				url, err := a.uploadImage(cmd, imagePath)
				if err != nil {
					return err
				}
				input.Image = url
			}
			item, err := a.client.CreateItem(cmd.Context(), input)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created item %s (%s)\n", item.Name, item.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Name, "name", "", "item name")
	cmd.Flags().StringVar(&input.Description, "description", "", "item description")
	cmd.Flags().StringVar(&input.Coordinates, "coordinates", "", `location as "lat,lng"`)
	cmd.Flags().StringVar(&imagePath, "image", "", "path to a photo to upload")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) itemsEditCmd() *cobra.Command {
	var name, description, coordinates, imagePath string
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of one of your items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			var patch client.ItemPatch
			flags := cmd.Flags()
			if flags.Changed("name") {
				patch.Name = &name
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("coordinates") {
				patch.Coordinates = &coordinates
			}
			if flags.Changed("image") {
				url, err := a.uploadImage(cmd, imagePath)
				if err != nil {
					return err
				}
				patch.Image = &url
			}

			item, err := a.client.UpdateItem(cmd.Context(), args[0], patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated item %s (%s)\n", item.Name, item.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&coordinates, "coordinates", "", `new location as "lat,lng", empty to clear`)
	cmd.Flags().StringVar(&imagePath, "image", "", "path to a replacement photo")
	return cmd
}

func (a *app) itemsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of your items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			if err := a.client.DeleteItem(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Item removed")
			return nil
		},
	}
}

func (a *app) uploadImage(cmd *cobra.Command, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	return a.client.UploadImage(cmd.Context(), path, f)
}
