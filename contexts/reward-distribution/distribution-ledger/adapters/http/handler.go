package httpadapter

import (
	"context"
	"log/slog"

	"merkledrop/contexts/reward-distribution/distribution-ledger/application"
	"merkledrop/contexts/reward-distribution/distribution-ledger/domain/entities"
	domainerrors "merkledrop/contexts/reward-distribution/distribution-ledger/domain/errors"
	httptransport "merkledrop/contexts/reward-distribution/distribution-ledger/transport/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) FundHandler(
	ctx context.Context,
	token string,
	req httptransport.FundRequest,
) (httptransport.FundResponse, error) {
	tokenAddr, err := parseAddress(token)
	if err != nil {
		return httptransport.FundResponse{}, err
	}
	funder, err := parseAddress(req.Funder)
	if err != nil {
		return httptransport.FundResponse{}, err
	}
	root, err := parseHash(req.Root)
	if err != nil {
		return httptransport.FundResponse{}, domainerrors.ErrInvalidRoot
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return httptransport.FundResponse{}, err
	}

	view, batchNumber, err := h.Service.Fund(ctx, funder, tokenAddr, root, amount)
	if err != nil {
		return httptransport.FundResponse{}, err
	}
	resp := httptransport.FundResponse{Status: "success"}
	resp.Data.BatchNumber = batchNumber
	resp.Data.Root = root.Hex()
	resp.Data.Distribution = toDistributionDTO(view)
	return resp, nil
}

func (h Handler) ClaimHandler(
	ctx context.Context,
	beneficiary string,
	req httptransport.ClaimRequest,
) (httptransport.ClaimResponse, error) {
	beneficiaryAddr, err := parseAddress(beneficiary)
	if err != nil {
		return httptransport.ClaimResponse{}, err
	}
	tokens := make([]common.Address, 0, len(req.Tokens))
	for _, token := range req.Tokens {
		addr, err := parseAddress(token)
		if err != nil {
			return httptransport.ClaimResponse{}, err
		}
		tokens = append(tokens, addr)
	}

	requests := make([]entities.ClaimRequest, 0, len(req.Claims))
	for _, entry := range req.Claims {
		amount, err := parseAmount(entry.Amount)
		if err != nil {
			return httptransport.ClaimResponse{}, err
		}
		proof := make([]common.Hash, 0, len(entry.Proof))
		for _, sibling := range entry.Proof {
			hash, err := parseHash(sibling)
			if err != nil {
				return httptransport.ClaimResponse{}, domainerrors.ErrInvalidClaimInput
			}
			proof = append(proof, hash)
		}
		requests = append(requests, entities.ClaimRequest{
			BatchNumber: entry.BatchNumber,
			Amount:      amount,
			TokenIndex:  entry.TokenIndex,
			Proof:       proof,
		})
	}

	receipts, err := h.Service.Claim(ctx, beneficiaryAddr, tokens, requests)
	if err != nil {
		return httptransport.ClaimResponse{}, err
	}
	resp := httptransport.ClaimResponse{
		Status: "success",
		Data:   make([]httptransport.ClaimReceiptDTO, 0, len(receipts)),
	}
	for _, receipt := range receipts {
		resp.Data = append(resp.Data, httptransport.ClaimReceiptDTO{
			Token:       receipt.Token.Hex(),
			BatchNumber: receipt.BatchNumber,
			Amount:      receipt.Amount.Dec(),
		})
	}
	return resp, nil
}

func (h Handler) CleanHandler(
	ctx context.Context,
	req httptransport.CleanRequest,
) (httptransport.CleanResponse, error) {
	tokens := make([]common.Address, 0, len(req.Tokens))
	for _, token := range req.Tokens {
		addr, err := parseAddress(token)
		if err != nil {
			return httptransport.CleanResponse{}, err
		}
		tokens = append(tokens, addr)
	}
	swept, err := h.Service.Clean(ctx, tokens)
	if err != nil {
		return httptransport.CleanResponse{}, err
	}
	resp := httptransport.CleanResponse{
		Status: "success",
		Swept:  make([]string, 0, len(swept)),
	}
	for _, token := range swept {
		resp.Swept = append(resp.Swept, token.Hex())
	}
	return resp, nil
}

func (h Handler) GetDistributionHandler(
	ctx context.Context,
	token string,
) (httptransport.DistributionResponse, error) {
	tokenAddr, err := parseAddress(token)
	if err != nil {
		return httptransport.DistributionResponse{}, err
	}
	view, err := h.Service.GetDistribution(ctx, tokenAddr)
	if err != nil {
		return httptransport.DistributionResponse{}, err
	}
	return httptransport.DistributionResponse{
		Status: "success",
		Data:   toDistributionDTO(view),
	}, nil
}

func (h Handler) GetBatchRootHandler(
	ctx context.Context,
	token string,
	batchNumber uint64,
) (httptransport.BatchRootResponse, error) {
	tokenAddr, err := parseAddress(token)
	if err != nil {
		return httptransport.BatchRootResponse{}, err
	}
	root, err := h.Service.GetBatchRoot(ctx, tokenAddr, batchNumber)
	if err != nil {
		return httptransport.BatchRootResponse{}, err
	}
	resp := httptransport.BatchRootResponse{Status: "success"}
	resp.Data.Token = tokenAddr.Hex()
	resp.Data.BatchNumber = batchNumber
	resp.Data.Root = root.Hex()
	return resp, nil
}

func (h Handler) IsClaimedHandler(
	ctx context.Context,
	beneficiary string,
	token string,
	batchNumber uint64,
) (httptransport.IsClaimedResponse, error) {
	beneficiaryAddr, err := parseAddress(beneficiary)
	if err != nil {
		return httptransport.IsClaimedResponse{}, err
	}
	tokenAddr, err := parseAddress(token)
	if err != nil {
		return httptransport.IsClaimedResponse{}, err
	}
	claimed, err := h.Service.IsClaimed(ctx, beneficiaryAddr, tokenAddr, batchNumber)
	if err != nil {
		return httptransport.IsClaimedResponse{}, err
	}
	resp := httptransport.IsClaimedResponse{Status: "success"}
	resp.Data.Beneficiary = beneficiaryAddr.Hex()
	resp.Data.Token = tokenAddr.Hex()
	resp.Data.BatchNumber = batchNumber
	resp.Data.Claimed = claimed
	return resp, nil
}

func toDistributionDTO(view entities.DistributionView) httptransport.DistributionDTO {
	remaining := "0"
	if view.Remaining != nil {
		remaining = view.Remaining.Dec()
	}
	return httptransport.DistributionDTO{
		Token:           view.Token.Hex(),
		Remaining:       remaining,
		NextBatchNumber: view.NextBatchNumber,
	}
}

func parseAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, domainerrors.ErrInvalidClaimInput
	}
	return common.HexToAddress(value), nil
}

func parseHash(value string) (common.Hash, error) {
	if len(value) != 2+2*common.HashLength || value[:2] != "0x" {
		return common.Hash{}, domainerrors.ErrInvalidClaimInput
	}
	return common.HexToHash(value), nil
}

func parseAmount(value string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(value)
	if err != nil {
		return nil, domainerrors.ErrInvalidClaimInput
	}
	return amount, nil
}
