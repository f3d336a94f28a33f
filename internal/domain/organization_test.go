package domain

import "testing"

func TestNewOrganization_RaisesOrganizationCreated(t *testing.T) {
	org, err := NewOrganization("Acme Inc", "acme-inc", "retail")
	if err != nil {
		t.Fatalf("NewOrganization: %v", err)
	}
	if !org.HasPendingEvents() {
		t.Fatal("expected NewOrganization to raise OrganizationCreated")
	}

	events := org.DrainEvents()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	created, ok := events[0].(OrganizationCreated)
	if !ok {
		t.Fatalf("event type = %T, want OrganizationCreated", events[0])
	}
	if created.AggregateID() != org.ID {
		t.Errorf("event aggregate id = %s, want %s", created.AggregateID(), org.ID)
	}
	if created.Slug != org.Slug {
		t.Errorf("event slug = %q, want %q", created.Slug, org.Slug)
	}
	if org.HasPendingEvents() {
		t.Error("DrainEvents should clear pending events")
	}
}

func TestNewOrganization_RejectsInvalidSlug(t *testing.T) {
	cases := []string{"Acme Inc", "acme_inc", "-acme", "acme-", ""}
	for _, slug := range cases {
		if _, err := NewOrganization("Acme Inc", slug, "retail"); err == nil {
			t.Errorf("slug %q: expected validation error", slug)
		}
	}
}

func TestNewOrganization_RejectsBlankName(t *testing.T) {
	if _, err := NewOrganization("  ", "acme-inc", "retail"); err == nil {
		t.Error("expected validation error for blank name")
	}
}
