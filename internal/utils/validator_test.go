package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrongPassword(t *testing.T) {
	type form struct {
		Password string `json:"password" validate:"strong_password"`
	}

	assert.NoError(t, ValidateStruct(&form{"Secur3!pass"}))
	for _, weak := range []string{"Sh0rt!", "alllowercase1!", "ALLUPPER1!", "NoDigits!!", "NoSymbol123"} {
		assert.Error(t, ValidateStruct(&form{weak}), weak)
	}
}

func TestUsername(t *testing.T) {
	type form struct {
		Username string `json:"username" validate:"username"`
	}

	assert.NoError(t, ValidateStruct(&form{"cubit_user1"}))
	assert.Error(t, ValidateStruct(&form{"ab"}))
	assert.Error(t, ValidateStruct(&form{"has space"}))
	assert.Error(t, ValidateStruct(&form{"dash-name"}))
}

func TestLicensingTags(t *testing.T) {
	type form struct {
		ProductName  string `json:"product_name" validate:"licensed_product"`
		ValidityType string `json:"validity_type" validate:"validity_type"`
	}

	assert.NoError(t, ValidateStruct(&form{"CuBIT Designer", "LIFETIME"}))
	assert.NoError(t, ValidateStruct(&form{"CuBIT Simulator", "CUSTOM_DATE"}))

	errs := GetValidationErrors(ValidateStruct(&form{"cubit designer", "FOREVER"}))
	if assert.Len(t, errs, 2) {
		assert.Equal(t, "product_name", errs[0].Field)
		assert.Equal(t, "validity_type", errs[1].Field)
	}
}

func TestGetValidationErrorsIgnoresOtherErrors(t *testing.T) {
	assert.Empty(t, GetValidationErrors(nil))
	assert.Empty(t, GetValidationErrors(assert.AnError))
}
