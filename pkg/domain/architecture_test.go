package domain

import (
	"testing"

	"applicantsync/testutil"
)

func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain contracts stay free of implementation packages")
}

func TestDomainDoesNotImportDrivers(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.StorageDriverForbidden, "domain contracts are backend agnostic")
}
