// internal/engine/extract/extractor_test.go
package extract

import (
	"context"
	"testing"

	"intake-engine/internal/common/logger"
	"intake-engine/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type stubDirectory struct {
	users []models.User
	err   error
}

func (s *stubDirectory) GetAllUsers(ctx context.Context) ([]models.User, error) {
	return s.users, s.err
}

func createTestExtractor(t *testing.T, dir Directory) *Extractor {
	return NewExtractor(dir, logger.NewTestLogger(t), 4)
}

func mapping(keyword, field string) models.KeywordMapping {
	return models.KeywordMapping{Keyword: keyword, Field: field}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestExtractor_Extract_KeywordPositional(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		mappings []models.KeywordMapping
		expected map[string]string
	}{
		{
			name:     "value on same line after colon",
			text:     "Opportunity ID: OPP-12345\nSome other text",
			mappings: []models.KeywordMapping{mapping("Opportunity ID", "opportunityId")},
			expected: map[string]string{"opportunityId": "OPP-12345"},
		},
		{
			name:     "keyword match is case insensitive",
			text:     "opportunity id - OPP-777",
			mappings: []models.KeywordMapping{mapping("Opportunity ID", "opportunityId")},
			expected: map[string]string{"opportunityId": "OPP-777"},
		},
		{
			name:     "value on following non-blank line",
			text:     "Account Manager:\n\n   \nJane Smith\nextra",
			mappings: []models.KeywordMapping{mapping("Account Manager", "accountManager")},
			expected: map[string]string{"accountManager": "Jane Smith"},
		},
		{
			name:     "br entities treated as line breaks",
			text:     "Customer:<br>Acme Corp<br/>Practice: Security",
			mappings: []models.KeywordMapping{mapping("Customer", "customer"), mapping("Practice", "practice")},
			expected: map[string]string{"customer": "Acme Corp", "practice": "Security"},
		},
		{
			name:     "html entities decoded",
			text:     "Customer: Smith &amp; Sons",
			mappings: []models.KeywordMapping{mapping("Customer", "customer")},
			expected: map[string]string{"customer": "Smith & Sons"},
		},
		{
			name:     "missing keyword yields sentinel",
			text:     "nothing relevant here",
			mappings: []models.KeywordMapping{mapping("Opportunity ID", "opportunityId")},
			expected: map[string]string{"opportunityId": NotFound},
		},
		{
			name:     "keyword present but nothing usable within scan window",
			text:     "Customer:\n\n\n\n\n\n\n",
			mappings: []models.KeywordMapping{mapping("Customer", "customer")},
			expected: map[string]string{"customer": NotFound},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := createTestExtractor(t, &stubDirectory{})
			fields := e.Extract(context.Background(), tt.text, tt.mappings)

			for field, want := range tt.expected {
				got, ok := fields[field]
				require.True(t, ok, "field %s missing from field set", field)
				assert.Equal(t, want, got.Value)
			}
		})
	}
}

func TestExtractor_Extract_SubmittedByTypoTolerant(t *testing.T) {
	e := createTestExtractor(t, &stubDirectory{})
	mappings := []models.KeywordMapping{mapping("Submitted By", FieldSubmittedBy)}

	correct := e.Extract(context.Background(), "Submitted By: Alice Jones", mappings)
	assert.Equal(t, "Alice Jones", correct[FieldSubmittedBy].Value)

	misspelled := e.Extract(context.Background(), "Submited By: Bob Lee", mappings)
	assert.Equal(t, "Bob Lee", misspelled[FieldSubmittedBy].Value)
}

func TestExtractor_Extract_TechTableBlock(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "block between sentinels captured",
			text:     "preamble\n=== BEGIN TECH ===\nfirewalls | 10\nswitches | 4\n=== END TECH ===\ntrailer",
			expected: "firewalls | 10\nswitches | 4",
		},
		{
			name:     "missing end sentinel",
			text:     "=== BEGIN TECH ===\nfirewalls | 10",
			expected: NotFound,
		},
		{
			name:     "no block at all",
			text:     "plain email body",
			expected: NotFound,
		},
		{
			name:     "empty block",
			text:     "=== BEGIN TECH ===\n   \n=== END TECH ===",
			expected: NotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := createTestExtractor(t, &stubDirectory{})
			fields := e.Extract(context.Background(), tt.text,
				[]models.KeywordMapping{mapping("Technologies", FieldTechTable)})
			assert.Equal(t, tt.expected, fields[FieldTechTable].Value)
		})
	}
}

func TestExtractor_Extract_RegionValidation(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected string
	}{
		{
			name:     "exact canonical code",
			text:     "Region: DAL",
			expected: "DAL",
		},
		{
			name:     "lowercase exact code",
			text:     "Region: nyc",
			expected: "NYC",
		},
		{
			name:     "substring containing a code",
			text:     "Region: greater SEA area",
			expected: "SEA",
		},
		{
			name:     "over twenty characters rejected",
			text:     "Region: this candidate is far too long to be a code DAL",
			expected: NotFound,
		},
		{
			name:     "unknown code rejected",
			text:     "Region: XYZ",
			expected: NotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := createTestExtractor(t, &stubDirectory{})
			fields := e.Extract(context.Background(), tt.text,
				[]models.KeywordMapping{mapping("Region", FieldRegion)})
			assert.Equal(t, tt.expected, fields[FieldRegion].Value)
		})
	}
}

func TestExtractor_Extract_EmailChain(t *testing.T) {
	dir := &stubDirectory{users: []models.User{
		{Name: "Carol Danvers", Email: "Carol.Danvers@example.com", Role: "AM"},
		{Name: "Dan Ng", Email: "dan.ng@example.com", Role: "SA"},
	}}

	t.Run("regex first then directory name fallback", func(t *testing.T) {
		e := createTestExtractor(t, dir)
		fields := e.Extract(context.Background(),
			"To: alice@example.com; Carol Danvers, bob@example.com",
			[]models.KeywordMapping{mapping("To", FieldEmailChain)})

		people := fields[FieldEmailChain].People
		require.Len(t, people, 3)

		emails := make([]string, 0, len(people))
		for _, p := range people {
			emails = append(emails, p.Email)
		}
		assert.Contains(t, emails, "alice@example.com")
		assert.Contains(t, emails, "bob@example.com")
		assert.Contains(t, emails, "carol.danvers@example.com")
	})

	t.Run("regex-matched addresses get names from the directory", func(t *testing.T) {
		e := createTestExtractor(t, dir)
		fields := e.Extract(context.Background(),
			"To: dan.ng@example.com, stranger@example.com",
			[]models.KeywordMapping{mapping("To", FieldEmailChain)})

		people := fields[FieldEmailChain].People
		require.Len(t, people, 2)
		assert.Equal(t, models.Person{Name: "Dan Ng", Email: "dan.ng@example.com"}, people[0])
		assert.Equal(t, models.Person{Email: "stranger@example.com"}, people[1],
			"addresses the directory does not know keep an empty name")
	})

	t.Run("duplicate addresses collapsed", func(t *testing.T) {
		e := createTestExtractor(t, dir)
		fields := e.Extract(context.Background(),
			"To: alice@example.com, ALICE@example.com",
			[]models.KeywordMapping{mapping("To", FieldEmailChain)})
		assert.Len(t, fields[FieldEmailChain].People, 1)
	})

	t.Run("unresolvable names yield sentinel", func(t *testing.T) {
		e := createTestExtractor(t, dir)
		fields := e.Extract(context.Background(),
			"To: Nobody Known",
			[]models.KeywordMapping{mapping("To", FieldEmailChain)})
		assert.Equal(t, NotFound, fields[FieldEmailChain].Value)
		assert.Empty(t, fields[FieldEmailChain].People)
	})

	t.Run("directory failure degrades to regex-only", func(t *testing.T) {
		e := createTestExtractor(t, &stubDirectory{err: assert.AnError})
		fields := e.Extract(context.Background(),
			"To: alice@example.com, Carol Danvers",
			[]models.KeywordMapping{mapping("To", FieldEmailChain)})
		require.Len(t, fields[FieldEmailChain].People, 1)
		assert.Equal(t, "alice@example.com", fields[FieldEmailChain].People[0].Email)
	})
}

func TestCanonicalRegion(t *testing.T) {
	code, ok := CanonicalRegion("  chi ")
	assert.True(t, ok)
	assert.Equal(t, "CHI", code)

	_, ok = CanonicalRegion("")
	assert.False(t, ok)

	_, ok = CanonicalRegion("somewhere in the midwest CHI")
	assert.False(t, ok, "length cap applies before substring search")
}

func TestField_Found(t *testing.T) {
	assert.False(t, Field{Value: NotFound}.Found())
	assert.True(t, Field{Value: "x"}.Found())
	assert.True(t, Field{Value: NotFound, People: []models.Person{{Email: "a@b.co"}}}.Found())
}
