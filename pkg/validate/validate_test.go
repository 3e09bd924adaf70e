package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipecost/pkg/apperr"
)

type signup struct {
	Name     string `json:"name" validate:"required,notblank,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,password"`
}

type patch struct {
	Name  *string  `json:"name" validate:"omitempty,notblank"`
	Price *float64 `json:"price" validate:"omitempty,gte=0"`
}

func TestStructReportsFirstFieldByJSONName(t *testing.T) {
	err := Struct(&signup{Name: "Ana", Email: "not-an-email", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, apperr.Message(err), "'email'")

	err = Struct(&signup{Name: "   ", Email: "ana@example.com", Password: "secret1"})
	require.Error(t, err)
	assert.Contains(t, apperr.Message(err), "'name'")

	err = Struct(&signup{Name: "Ana", Email: "ana@example.com", Password: "12345"})
	require.Error(t, err)
	assert.Contains(t, apperr.Message(err), "entre 6 e 72")

	assert.NoError(t, Struct(&signup{Name: "Ana", Email: "ana@example.com", Password: "secret1"}))
}

func TestStructOptionalPointers(t *testing.T) {
	assert.NoError(t, Struct(&patch{}))

	blank := " "
	assert.Error(t, Struct(&patch{Name: &blank}))

	neg := -1.5
	err := Struct(&patch{Price: &neg})
	require.Error(t, err)
	assert.Contains(t, apperr.Message(err), "'price'")

	zero := 0.0
	assert.NoError(t, Struct(&patch{Price: &zero}))
}

type contactPatch struct {
	Email *string `json:"email" validate:"omitnil,optemail,max=255"`
}

func TestOptionalEmailCanBeCleared(t *testing.T) {
	assert.NoError(t, Struct(&contactPatch{}))

	empty := ""
	assert.NoError(t, Struct(&contactPatch{Email: &empty}))

	good := "festa@example.com"
	assert.NoError(t, Struct(&contactPatch{Email: &good}))

	bad := "festa"
	err := Struct(&contactPatch{Email: &bad})
	require.Error(t, err)
	assert.Equal(t, "O campo 'email' deve ser um email válido.", apperr.Message(err))
}

func TestID(t *testing.T) {
	id, err := ID("42", "da receita")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, raw := range []string{"0", "-1", "abc", "", "1.5"} {
		_, err := ID(raw, "da receita")
		assert.Error(t, err, raw)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
}

func TestEmailNormalization(t *testing.T) {
	assert.Equal(t, "ana@example.com", Email("  Ana@Example.COM "))
}

func TestDate(t *testing.T) {
	d, err := Date("2026-03-01", "due_date")
	require.NoError(t, err)
	assert.Equal(t, time.March, d.Month())

	_, err = Date("2026-03-01T10:00:00Z", "due_date")
	require.NoError(t, err)

	_, err = Date("01/03/2026", "due_date")
	assert.Error(t, err)
}
