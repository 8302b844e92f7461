package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syncedPair() (StorefrontProduct, ProductDraft) {
	current := StorefrontProduct{
		ID:         "100",
		SKU:        "WM-1",
		Title:      "Desk lamp",
		Price:      decimal.RequireFromString("24.95"),
		Cost:       decimal.NewNullDecimal(decimal.RequireFromString("12.50")),
		Status:     ProductStatusActive,
		BodyHTML:   "<p>Lamp</p>",
		ImageCount: 2,
	}
	desired := ProductDraft{
		SKU:      "WM-1",
		Title:    "Desk lamp",
		Price:    decimal.RequireFromString("24.950"),
		Cost:     decimal.NewNullDecimal(decimal.RequireFromString("12.5")),
		Status:   ProductStatusActive,
		BodyHTML: "<p>Lamp</p>",
		Images:   []string{"a.jpg", "b.jpg"},
	}
	return current, desired
}

func TestDiff_NoChanges(t *testing.T) {
	current, desired := syncedPair()

	changes := Diff(current, desired)

	assert.True(t, changes.IsEmpty())
	assert.Empty(t, changes.Fields())
	assert.False(t, changes.TouchesProduct())
	assert.False(t, changes.TouchesVariant())
}

func TestDiff_PriceOnly(t *testing.T) {
	current, desired := syncedPair()
	desired.Price = decimal.RequireFromString("29.95")

	changes := Diff(current, desired)

	assert.Equal(t, []string{FieldPrice}, changes.Fields())
	require.NotNil(t, changes.Price)
	assert.Equal(t, "29.95", changes.Price.StringFixed(2))
	assert.Nil(t, changes.Title)
	assert.Nil(t, changes.BodyHTML)
	assert.Nil(t, changes.Images)
	assert.False(t, changes.TouchesProduct())
	assert.True(t, changes.TouchesVariant())
}

func TestDiff_EachField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*StorefrontProduct, *ProductDraft)
		field  string
	}{
		{"title", func(_ *StorefrontProduct, d *ProductDraft) { d.Title = "Floor lamp" }, FieldTitle},
		{"cost", func(_ *StorefrontProduct, d *ProductDraft) { d.Cost = decimal.NewNullDecimal(decimal.NewFromInt(11)) }, FieldCost},
		{"cost unknown on storefront", func(c *StorefrontProduct, _ *ProductDraft) { c.Cost = decimal.NullDecimal{} }, FieldCost},
		{"status", func(c *StorefrontProduct, _ *ProductDraft) { c.Status = ProductStatusDraft }, FieldStatus},
		{"body", func(_ *StorefrontProduct, d *ProductDraft) { d.BodyHTML = "<p>New</p>" }, FieldBodyHTML},
		{"image count", func(_ *StorefrontProduct, d *ProductDraft) { d.Images = []string{"a.jpg"} }, FieldImageCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current, desired := syncedPair()
			tt.mutate(&current, &desired)

			changes := Diff(current, desired)

			assert.Equal(t, []string{tt.field}, changes.Fields())
		})
	}
}

func TestDiff_UnmanagedFieldsAreIgnored(t *testing.T) {
	current, desired := syncedPair()
	desired.BodyHTML = ""
	desired.Images = nil
	desired.Cost = decimal.NullDecimal{}
	current.BodyHTML = "<p>Edited by hand</p>"
	current.ImageCount = 7

	assert.True(t, Diff(current, desired).IsEmpty())
}

func TestProductChanges_Apply(t *testing.T) {
	current, desired := syncedPair()
	desired.Title = "Floor lamp"
	desired.Price = decimal.NewFromInt(30)
	desired.Images = []string{"a.jpg", "b.jpg", "c.jpg"}

	changes := Diff(current, desired)
	after := changes.Apply(current)

	assert.True(t, Diff(after, desired).IsEmpty())
	assert.Equal(t, 3, after.ImageCount)
	assert.Equal(t, "100", after.ID)
}

func TestDiff_BodyHTMLAsSerializedByTheStorefront(t *testing.T) {
	current, desired := syncedPair()
	desired.BodyHTML = "<p>Lamp &amp; shade</p>\n<ul>\n  <li>Zwart</li>\n  <li>40 cm</li>\n</ul><br/>"
	current.BodyHTML = "<p>Lamp &amp; shade</p><ul><li>Zwart</li><li>40  cm</li></ul><br>"

	changes := Diff(current, desired)

	assert.Nil(t, changes.BodyHTML)
	assert.True(t, changes.IsEmpty())

	current.BodyHTML = "<p>Lamp &amp; shade</p><ul><li>Wit</li><li>40 cm</li></ul><br>"
	changes = Diff(current, desired)
	require.NotNil(t, changes.BodyHTML)
	assert.Equal(t, desired.BodyHTML, *changes.BodyHTML)
}

func TestSameHTML(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "<p>a</p>", "<p>a</p>", true},
		{"whitespace between tags", "<p>a</p>\n<p>b</p>", "<p>a</p><p>b</p>", true},
		{"attribute quoting", `<a href='/x'>x</a>`, `<a href="/x">x</a>`, true},
		{"tag case", "<P>a</P>", "<p>a</p>", true},
		{"entity spelling", "<p>&#39;a&#39;</p>", "<p>'a'</p>", true},
		{"comment", "<p>a</p><!-- x -->", "<p>a</p>", true},
		{"text differs", "<p>a</p>", "<p>b</p>", false},
		{"tag differs", "<p>a</p>", "<div>a</div>", false},
		{"attribute differs", `<a href="/x">x</a>`, `<a href="/y">x</a>`, false},
		{"empty against text", "", "<p>a</p>", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameHTML(tt.a, tt.b))
		})
	}
}
