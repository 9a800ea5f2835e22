// Package subscriber pumps confirmed contract logs from a chain into the
// event handlers. Each subscriber watches one contract, splits the chain
// into bounded block ranges, groups fetched logs per block and only
// advances its stored watermark after a block's handlers succeeded.
package subscriber

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/openst/facilitator/contract"
	"github.com/openst/facilitator/db"
	"github.com/openst/facilitator/entity"
	"github.com/openst/facilitator/ethclient"
	"github.com/openst/facilitator/handler"
	"github.com/openst/facilitator/logging"
	"github.com/openst/facilitator/repository"
)

const defaultBlockRangesChanCap = 10
const defaultBatchesChanCap = 200
const fetchRetryInterval = 10 * time.Second

type BlocksRange struct {
	From uint64
	To   uint64
}

// LogsBatch carries all logs of one block, or no logs at all when a range
// ended without events and only the watermark has to move.
type LogsBatch struct {
	BlockNumber uint64
	Logs        []types.Log
}

type Subscriber struct {
	logger          logging.Logger
	repo            *repository.Repo
	client          ethclient.Client
	contract        *contract.Contract
	startBlock      uint64
	maxRangeSize    uint64
	confirmations   uint64
	pollInterval    time.Duration
	blocksRangeChan chan *BlocksRange
	batchesChan     chan *LogsBatch
	eventHandlers   map[string]handler.EventHandler

	headBlockMetric      prometheus.Gauge
	fetchedBlockMetric   prometheus.Gauge
	processedBlockMetric prometheus.Gauge
}

func NewSubscriber(
	logger logging.Logger,
	repo *repository.Repo,
	client ethclient.Client,
	c *contract.Contract,
	startBlock, maxRangeSize, confirmations uint64,
	pollInterval time.Duration,
) *Subscriber {
	labels := prometheus.Labels{
		"chain_id": client.ChainID(),
		"address":  c.Address().String(),
	}
	return &Subscriber{
		logger:               logger,
		repo:                 repo,
		client:               client,
		contract:             c,
		startBlock:           startBlock,
		maxRangeSize:         maxRangeSize,
		confirmations:        confirmations,
		pollInterval:         pollInterval,
		blocksRangeChan:      make(chan *BlocksRange, defaultBlockRangesChanCap),
		batchesChan:          make(chan *LogsBatch, defaultBatchesChanCap),
		eventHandlers:        make(map[string]handler.EventHandler),
		headBlockMetric:      LatestHeadBlock.With(labels),
		fetchedBlockMetric:   LatestFetchedBlock.With(labels),
		processedBlockMetric: LatestProcessedBlock.With(labels),
	}
}

func (s *Subscriber) RegisterEventHandler(event string, h handler.EventHandler) {
	s.eventHandlers[event] = h
}

func (s *Subscriber) VerifyEventHandlersABI() error {
	events := s.contract.AllEvents()
	for e := range s.eventHandlers {
		if !events[e] {
			return fmt.Errorf("contract does not have %s event in its ABI", e)
		}
	}
	return nil
}

func (s *Subscriber) Start(ctx context.Context) error {
	resume, err := s.resumeBlock(ctx)
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"chain_id":   s.client.ChainID(),
		"address":    s.contract.Address(),
		"from_block": resume,
	}).Info("Starting contract subscriber")

	go s.startBlockFetcher(ctx, resume)
	go s.startProcessor(ctx)
	go s.startLogsFetcher(ctx)
	return nil
}

// resumeBlock picks the block to resume ingestion from: one past the lowest
// stored watermark of the registered event types, never below the
// configured start block. Any event type without a watermark forces a
// resume from the start block, nothing may be skipped for it.
func (s *Subscriber) resumeBlock(ctx context.Context) (uint64, error) {
	var minWatermark *uint64
	for event := range s.eventHandlers {
		ce, err := s.repo.ContractEntities.Get(ctx, s.contract.Address(), event)
		if errors.Is(err, db.ErrNotFound) {
			return s.startBlock, nil
		}
		if err != nil {
			return 0, fmt.Errorf("can't read watermark for %s: %w", event, err)
		}
		if minWatermark == nil || ce.Timestamp < *minWatermark {
			minWatermark = &ce.Timestamp
		}
	}
	if minWatermark == nil || *minWatermark < s.startBlock {
		return s.startBlock, nil
	}
	return *minWatermark + 1, nil
}

func (s *Subscriber) startBlockFetcher(ctx context.Context, start uint64) {
	for {
		head, err := s.client.BlockNumber(ctx)
		if err != nil {
			s.logger.WithError(err).Error("Can't fetch latest block number")
		} else {
			if head > s.confirmations {
				head -= s.confirmations
			} else {
				head = 0
			}
			s.headBlockMetric.Set(float64(head))

			for start <= head {
				end := start + s.maxRangeSize - 1
				if end > head {
					end = head
				}
				s.logger.WithFields(logrus.Fields{
					"from_block": start,
					"to_block":   end,
				}).Debug("Scheduling block range logs search")
				select {
				case <-ctx.Done():
					return
				case s.blocksRangeChan <- &BlocksRange{From: start, To: end}:
				}
				start = end + 1
			}
		}

		if contextSleep(ctx, s.pollInterval) == nil {
			return
		}
	}
}

func (s *Subscriber) startLogsFetcher(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case blocksRange := <-s.blocksRangeChan:
			for {
				err := s.tryToFetchLogs(ctx, blocksRange)
				if err != nil {
					s.logger.WithError(err).WithFields(logrus.Fields{
						"from_block": blocksRange.From,
						"to_block":   blocksRange.To,
					}).Error("Failed logs fetching, retrying")
					if contextSleep(ctx, fetchRetryInterval) == nil {
						return
					}
					continue
				}
				break
			}
		}
	}
}

func (s *Subscriber) tryToFetchLogs(ctx context.Context, blocksRange *BlocksRange) error {
	logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(blocksRange.From),
		ToBlock:   new(big.Int).SetUint64(blocksRange.To),
		Addresses: []common.Address{s.contract.Address()},
	})
	if err != nil {
		return err
	}
	sort.Slice(logs, func(i, j int) bool {
		a, b := logs[i], logs[j]
		return a.BlockNumber < b.BlockNumber || (a.BlockNumber == b.BlockNumber && a.Index < b.Index)
	})
	s.logger.WithFields(logrus.Fields{
		"count":      len(logs),
		"from_block": blocksRange.From,
		"to_block":   blocksRange.To,
	}).Debug("Fetched logs in range")

	s.fetchedBlockMetric.Set(float64(blocksRange.To))
	s.submitLogs(ctx, logs, blocksRange.To)
	return nil
}

// submitLogs cuts the sorted logs into per-block batches. A trailing empty
// batch moves the watermark over event-free tails of the range.
func (s *Subscriber) submitLogs(ctx context.Context, logs []types.Log, endBlock uint64) {
	lastBlock := uint64(0)
	if len(logs) > 0 {
		lastBlock = logs[len(logs)-1].BlockNumber
	}
	// sentinel to flush the last batch, never submitted
	logs = append(logs, types.Log{BlockNumber: math.MaxUint64})
	batchStart := 0
	for i, log := range logs {
		if log.BlockNumber > logs[batchStart].BlockNumber {
			select {
			case <-ctx.Done():
				return
			case s.batchesChan <- &LogsBatch{
				BlockNumber: logs[batchStart].BlockNumber,
				Logs:        logs[batchStart:i],
			}:
			}
			batchStart = i
		}
	}
	if lastBlock < endBlock {
		select {
		case <-ctx.Done():
		case s.batchesChan <- &LogsBatch{BlockNumber: endBlock}:
		}
	}
}

func (s *Subscriber) startProcessor(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch := <-s.batchesChan:
			for {
				err := s.tryToProcessBatch(ctx, batch)
				if err != nil {
					s.logger.WithError(err).WithFields(logrus.Fields{
						"block_number": batch.BlockNumber,
						"count":        len(batch.Logs),
					}).Error("Failed to process logs batch, retrying")
					if contextSleep(ctx, fetchRetryInterval) == nil {
						return
					}
					continue
				}
				break
			}

			for {
				err := s.advanceWatermarks(ctx, batch.BlockNumber)
				if err != nil {
					s.logger.WithError(err).WithField("block_number", batch.BlockNumber).
						Error("Failed to advance watermark, retrying")
					if contextSleep(ctx, fetchRetryInterval) == nil {
						return
					}
					continue
				}
				break
			}
			s.processedBlockMetric.Set(float64(batch.BlockNumber))
		}
	}
}

func (s *Subscriber) tryToProcessBatch(ctx context.Context, batch *LogsBatch) error {
	grouped := make(map[string][]*handler.EventRecord)
	var order []string
	for i := range batch.Logs {
		log := &batch.Logs[i]
		if log.Removed {
			continue
		}
		event, data, err := s.contract.ParseLog(log)
		if err != nil {
			return fmt.Errorf("can't parse log: %w", err)
		}
		if _, ok := s.eventHandlers[event]; !ok {
			if event == "" && len(log.Topics) > 0 {
				event = log.Topics[0].String()
			}
			s.logger.WithFields(logrus.Fields{
				"event":        event,
				"block_number": log.BlockNumber,
				"tx_hash":      log.TxHash,
				"log_index":    log.Index,
			}).Warn("Received unknown event")
			continue
		}
		if _, seen := grouped[event]; !seen {
			order = append(order, event)
		}
		grouped[event] = append(grouped[event], &handler.EventRecord{
			ContractAddress: log.Address,
			BlockNumber:     log.BlockNumber,
			TransactionHash: log.TxHash,
			LogIndex:        log.Index,
			Data:            data,
		})
	}

	for _, event := range order {
		if err := s.eventHandlers[event](ctx, grouped[event]); err != nil {
			return fmt.Errorf("handler for %s failed: %w", event, err)
		}
	}
	return nil
}

func (s *Subscriber) advanceWatermarks(ctx context.Context, blockNumber uint64) error {
	for event := range s.eventHandlers {
		_, err := s.repo.ContractEntities.Save(ctx, &entity.ContractEntity{
			ContractAddress: s.contract.Address(),
			EntityType:      event,
			Timestamp:       blockNumber,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func contextSleep(ctx context.Context, d time.Duration) *time.Time {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return nil
	case t := <-timer.C:
		return &t
	}
}
