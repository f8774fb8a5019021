package core

import (
	"context"
	"sync"
)

// AsyncClient provides asynchronous recall operations.
//
// It wraps the synchronous Client and executes operations in separate
// goroutines. Every async method returns a buffered channel that receives
// exactly one result and is then closed. Wait blocks until all started
// operations have finished.
//
// Example:
//
//	asyncClient, _ := core.NewAsyncClient(config)
//	defer asyncClient.Close()
//
//	resultChan := asyncClient.RecallAsync(ctx, "typescript", core.WithTenantIDForSearch("user_001"))
//	result := <-resultChan
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
type AsyncClient struct {
	*Client
	wg sync.WaitGroup
}

// NewAsyncClient creates a new asynchronous client from configuration.
func NewAsyncClient(cfg *Config, opts ...ClientOption) (*AsyncClient, error) {
	client, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &AsyncClient{Client: client}, nil
}

// NewAsyncClientFrom wraps an existing client.
func NewAsyncClientFrom(client *Client) *AsyncClient {
	return &AsyncClient{Client: client}
}

// SearchAsync ranks candidates asynchronously. See Client.Search.
func (ac *AsyncClient) SearchAsync(ctx context.Context, query string, candidates []*Memory, opts ...SearchOption) <-chan *SearchResultsResult {
	resultChan := make(chan *SearchResultsResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		results, err := ac.Search(ctx, query, candidates, opts...)
		resultChan <- &SearchResultsResult{Results: results, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// RecallAsync recalls tenant memories asynchronously. See Client.Recall.
func (ac *AsyncClient) RecallAsync(ctx context.Context, query string, opts ...SearchOption) <-chan *SearchResultsResult {
	resultChan := make(chan *SearchResultsResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		results, err := ac.Recall(ctx, query, opts...)
		resultChan <- &SearchResultsResult{Results: results, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// RememberAsync stores a memory asynchronously. See Client.Remember.
func (ac *AsyncClient) RememberAsync(ctx context.Context, content string, opts ...RememberOption) <-chan *MemoryResult {
	resultChan := make(chan *MemoryResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		memory, err := ac.Remember(ctx, content, opts...)
		resultChan <- &MemoryResult{Memory: memory, Error: err}
		close(resultChan)
	}()

	return resultChan
}

// ForgetAsync deletes a memory asynchronously. See Client.Forget.
func (ac *AsyncClient) ForgetAsync(ctx context.Context, tenantID, id string, opts ...ForgetOption) <-chan *ErrorResult {
	resultChan := make(chan *ErrorResult, 1)
	ac.wg.Add(1)

	go func() {
		defer ac.wg.Done()
		err := ac.Forget(ctx, tenantID, id, opts...)
		resultChan <- &ErrorResult{Error: err}
		close(resultChan)
	}()

	return resultChan
}

// Wait blocks until every started async operation has completed.
func (ac *AsyncClient) Wait() {
	ac.wg.Wait()
}

// Close waits for pending operations and closes the underlying client.
func (ac *AsyncClient) Close() error {
	ac.wg.Wait()
	return ac.Client.Close()
}
