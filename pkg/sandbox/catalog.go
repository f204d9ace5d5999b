// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package sandbox

// DefaultCatalog serves three untargeted notification ads and one
// technology campaign.
const DefaultCatalog = `{
  "catalogId": "sandbox-catalog-1",
  "version": 9,
  "ping": 7200000,
  "campaigns": [
    {
      "campaignId": "sandbox-campaign-1",
      "advertiserId": "sandbox-advertiser-1",
      "priority": 1,
      "ptr": 1,
      "dailyCap": 20,
      "creativeSets": [
        {
          "creativeSetId": "sandbox-creative-set-1",
          "perDay": 10,
          "totalMax": 100,
          "value": "0.05",
          "segments": [{"code": "untargeted", "name": "untargeted"}],
          "creatives": [
            {
              "creativeInstanceId": "sandbox-creative-1",
              "type": {"code": "notification_all_v1", "name": "notification", "platform": "all", "version": 1},
              "payload": {"title": "Sandbox", "body": "First sandbox ad", "targetUrl": "https://sandbox.example.com/1"}
            },
            {
              "creativeInstanceId": "sandbox-creative-2",
              "type": {"code": "notification_all_v1", "name": "notification", "platform": "all", "version": 1},
              "payload": {"title": "Sandbox", "body": "Second sandbox ad", "targetUrl": "https://sandbox.example.com/2"}
            },
            {
              "creativeInstanceId": "sandbox-creative-3",
              "type": {"code": "notification_all_v1", "name": "notification", "platform": "all", "version": 1},
              "payload": {"title": "Sandbox", "body": "Third sandbox ad", "targetUrl": "https://sandbox.example.com/3"}
            }
          ]
        }
      ]
    },
    {
      "campaignId": "sandbox-campaign-2",
      "advertiserId": "sandbox-advertiser-2",
      "priority": 1,
      "creativeSets": [
        {
          "creativeSetId": "sandbox-creative-set-2",
          "perDay": 5,
          "value": "0.1",
          "segments": [{"code": "tech", "name": "Technology & Computing"}],
          "creatives": [
            {
              "creativeInstanceId": "sandbox-creative-4",
              "type": {"code": "notification_all_v1", "name": "notification", "platform": "all", "version": 1},
              "payload": {"title": "Sandbox tech", "body": "Technology sandbox ad", "targetUrl": "https://sandbox.example.com/4"}
            }
          ]
        }
      ]
    }
  ]
}`
