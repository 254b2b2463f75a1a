package service

import "context"

type testTxRepos struct {
	tenants TenantRepositoryInterface
	apiKeys APIKeyRepositoryInterface
	uploads UploadRepositoryInterface
}

func (t *testTxRepos) Tenants() TenantRepositoryInterface {
	return t.tenants
}

func (t *testTxRepos) APIKeys() APIKeyRepositoryInterface {
	return t.apiKeys
}

func (t *testTxRepos) Uploads() UploadRepositoryInterface {
	return t.uploads
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
