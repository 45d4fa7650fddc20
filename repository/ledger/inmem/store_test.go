package inmem_test

import (
	"testing"

	ledgerrepo "voltzpay/repository/ledger"
	"voltzpay/repository/ledger/inmem"
	"voltzpay/repository/ledger/testcontract"
)

func TestStore(t *testing.T) {
	testcontract.TestStoreContract(t, func(t *testing.T) (ledgerrepo.Store, testcontract.Seeder) {
		s := inmem.New()
		return s, s
	})
}
