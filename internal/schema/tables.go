// Package schema - static table definitions for the agency site.
// Column keys are the wire contract with the backing store: migration files
// under internal/database/migrations must use the same names.
package schema

func init() {
	register(&TableSchema{
		Table:       TablePosts,
		DisplayName: "Posts",
		Description: "Blog posts and case studies shown on the public site",
		Icon:        "file-text",
		Columns: []ColumnSpec{
			{Key: "id", Label: "ID", Type: TypeText, ReadOnly: true, PrimaryKey: true, Hidden: true},
			{Key: "title", Label: "Title", Type: TypeText, Required: true, Width: 240},
			{Key: "slug", Label: "Slug", Type: TypeText, Required: true, Width: 180},
			{Key: "excerpt", Label: "Excerpt", Type: TypeTextarea, Width: 280},
			{Key: "content", Label: "Content", Type: TypeTextarea, Width: 320},
			{Key: "category", Label: "Category", Type: TypeSelect, Options: []string{"news", "case-study", "insights"}},
			{Key: "tags", Label: "Tags", Type: TypeArray, Width: 180},
			{Key: "cover_image", Label: "Cover Image", Type: TypeImage},
			{Key: "published", Label: "Published", Type: TypeBoolean},
			{Key: "published_at", Label: "Published At", Type: TypeDate},
			{Key: "created_at", Label: "Created", Type: TypeDate, ReadOnly: true},
			{Key: "updated_at", Label: "Updated", Type: TypeDate, ReadOnly: true, Hidden: true},
		},
	})

	register(&TableSchema{
		Table:       TableTeamMembers,
		DisplayName: "Team",
		Description: "People listed on the about page",
		Icon:        "users",
		Columns: []ColumnSpec{
			{Key: "id", Label: "ID", Type: TypeText, ReadOnly: true, PrimaryKey: true, Hidden: true},
			{Key: "name", Label: "Name", Type: TypeText, Required: true, Width: 200},
			{Key: "role_title", Label: "Role", Type: TypeText, Required: true, Width: 200},
			{Key: "bio", Label: "Bio", Type: TypeTextarea, Width: 300},
			{Key: "photo", Label: "Photo", Type: TypeImage},
			{Key: "skills", Label: "Skills", Type: TypeArray, Width: 200},
			{Key: "is_active", Label: "Active", Type: TypeBoolean},
			{Key: "display_order", Label: "Order", Type: TypeNumber, Width: 80},
			{Key: "created_at", Label: "Created", Type: TypeDate, ReadOnly: true},
		},
	})

	register(&TableSchema{
		Table:       TableMediaAssets,
		DisplayName: "Media",
		Description: "Uploaded images and documents",
		Icon:        "image",
		Columns: []ColumnSpec{
			{Key: "id", Label: "ID", Type: TypeText, ReadOnly: true, PrimaryKey: true, Hidden: true},
			{Key: "filename", Label: "Filename", Type: TypeText, Required: true, Width: 220},
			{Key: "url", Label: "Preview", Type: TypeImage, Required: true},
			{Key: "alt_text", Label: "Alt Text", Type: TypeText, Width: 200},
			{Key: "kind", Label: "Kind", Type: TypeSelect, Options: []string{"image", "video", "document"}},
			{Key: "size_bytes", Label: "Size", Type: TypeNumber, Width: 100},
			{Key: "tags", Label: "Tags", Type: TypeArray, Width: 180},
			{Key: "created_at", Label: "Uploaded", Type: TypeDate, ReadOnly: true},
		},
	})

	register(&TableSchema{
		Table:       TableIntegrations,
		DisplayName: "Integrations",
		Description: "Third-party API connections used by content tooling",
		Icon:        "plug",
		Columns: []ColumnSpec{
			{Key: "id", Label: "ID", Type: TypeText, ReadOnly: true, PrimaryKey: true, Hidden: true},
			{Key: "name", Label: "Name", Type: TypeText, Required: true, Width: 200},
			{Key: "provider", Label: "Provider", Type: TypeSelect, Options: []string{"openai", "stability", "replicate", "zapier", "webhook"}},
			{Key: "api_key_hint", Label: "Key Hint", Type: TypeText, Width: 120},
			{Key: "enabled", Label: "Enabled", Type: TypeBoolean},
			{Key: "config", Label: "Config", Type: TypeTextarea, Width: 260},
			{Key: "last_synced_at", Label: "Last Synced", Type: TypeDate, ReadOnly: true},
			{Key: "created_at", Label: "Created", Type: TypeDate, ReadOnly: true, Hidden: true},
		},
	})

	register(&TableSchema{
		Table:       TableWorkflows,
		DisplayName: "Workflows",
		Description: "Automated content and generation pipelines",
		Icon:        "git-branch",
		Columns: []ColumnSpec{
			{Key: "id", Label: "ID", Type: TypeText, ReadOnly: true, PrimaryKey: true, Hidden: true},
			{Key: "name", Label: "Name", Type: TypeText, Required: true, Width: 220},
			{Key: "trigger", Label: "Trigger", Type: TypeSelect, Options: []string{"manual", "schedule", "webhook"}},
			{Key: "steps", Label: "Steps", Type: TypeArray, Width: 260},
			{Key: "enabled", Label: "Enabled", Type: TypeBoolean},
			{Key: "last_run_at", Label: "Last Run", Type: TypeDate, ReadOnly: true},
			{Key: "notes", Label: "Notes", Type: TypeTextarea, Width: 240},
			{Key: "created_at", Label: "Created", Type: TypeDate, ReadOnly: true, Hidden: true},
		},
	})

	register(&TableSchema{
		Table:       TableTelemetryEvents,
		DisplayName: "Telemetry",
		Description: "Page view and interaction events",
		Icon:        "activity",
		Columns: []ColumnSpec{
			{Key: "id", Label: "ID", Type: TypeText, ReadOnly: true, PrimaryKey: true, Hidden: true},
			{Key: "event_name", Label: "Event", Type: TypeText, Required: true, Width: 180},
			{Key: "page_path", Label: "Page", Type: TypeText, Width: 220},
			{Key: "referrer", Label: "Referrer", Type: TypeText, Hidden: true, Width: 220},
			{Key: "payload", Label: "Payload", Type: TypeTextarea, Width: 260},
			{Key: "occurred_at", Label: "Occurred", Type: TypeDate, ReadOnly: true},
			{Key: "created_at", Label: "Recorded", Type: TypeDate, ReadOnly: true, Hidden: true},
		},
	})

	// Registered so settings rows validate like everything else, but not a
	// priority tab: the settings page has its own form.
	register(&TableSchema{
		Table:       TableSiteSettings,
		DisplayName: "Settings",
		Description: "Key/value site configuration",
		Icon:        "settings",
		Columns: []ColumnSpec{
			{Key: "id", Label: "ID", Type: TypeText, ReadOnly: true, PrimaryKey: true, Hidden: true},
			{Key: "key", Label: "Key", Type: TypeText, Required: true, Width: 180},
			{Key: "value", Label: "Value", Type: TypeTextarea, Width: 300},
			{Key: "category", Label: "Category", Type: TypeSelect, Options: []string{"general", "seo", "social"}},
			{Key: "updated_at", Label: "Updated", Type: TypeDate, ReadOnly: true},
			{Key: "created_at", Label: "Created", Type: TypeDate, ReadOnly: true, Hidden: true},
		},
	})
}
